package recipe

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleFields() Fields {
	return Fields{
		ID:           "pancakes",
		Title:        "Best Pancakes",
		Text:         "Fluffy [classic](https://example.com) pancakes",
		Images:       []string{},
		Categories:   []string{},
		Yield:        "4 servings",
		PrepTime:     "PT10M",
		CookTime:     "PT20M",
		TotalTime:    "PT30M",
		Ingredients:  "# Batter\n2 cups flour\n2 eggs",
		Instructions: "Mix\nFry",
		Notes:        "",
		Nutrition:    "",
		Link:         "Grandma",
	}
}

func successJSONFor(t *testing.T, f Fields, extra map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	obj["status"] = "success"
	for k, v := range extra {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	out, err := json.Marshal(map[string]interface{}{"result": obj})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(out)
}

func TestParseModelOutputSuccess(t *testing.T) {
	ext, err := ParseModelOutput(successJSONFor(t, sampleFields(), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", ext.Status)
	}
	if ext.Fields == nil || ext.Fields.Title != "Best Pancakes" || ext.Fields.CookTime != "PT20M" {
		t.Fatalf("unexpected fields %+v", ext.Fields)
	}
	if ext.Fields.Images == nil || ext.Fields.Categories == nil {
		t.Fatal("lists must never be nil")
	}
}

func TestParseModelOutputFailed(t *testing.T) {
	ext, err := ParseModelOutput(`{"result":{"status":"failed","reason":"not a recipe"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Status != StatusFailed || ext.Reason != "not a recipe" {
		t.Fatalf("unexpected extraction %+v", ext)
	}
}

func TestParseModelOutputRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", "Here is your recipe!", "malformed JSON"},
		{"code fence", "```json\n{}\n```", "malformed JSON"},
		{"trailing data", `{"result":{"status":"failed","reason":"x"}} extra`, "malformed JSON"},
		{"array", `[]`, "malformed JSON"},
		{"null", `null`, "expected a JSON object"},
		{"no envelope", `{"status":"failed","reason":"x"}`, "unexpected fields"},
		{"result not object", `{"result":"ok"}`, "result must be an object"},
		{"unknown status", `{"result":{"status":"maybe"}}`, "unsupported result.status"},
		{"missing status", `{"result":{"reason":"x"}}`, "result.status must be a string"},
		{"empty reason", `{"result":{"status":"failed","reason":"  "}}`, "reason must not be empty"},
		{"failed extra field", `{"result":{"status":"failed","reason":"x","code":1}}`, "unexpected fields: code"},
		{"pending from model", `{"result":{"status":"pending"}}`, "unsupported result.status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModelOutput(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseModelOutputRejectsBadSuccessShapes(t *testing.T) {
	tests := []struct {
		name  string
		extra map[string]interface{}
		want  string
	}{
		{"hallucinated field", map[string]interface{}{"servings": 4}, "unexpected fields: servings"},
		{"missing field", map[string]interface{}{"notes": nil}, "missing field notes"},
		{"wrong type", map[string]interface{}{"yield": 4}, "yield must be a string"},
		{"list of numbers", map[string]interface{}{"images": []int{1}}, "images must be an array of strings"},
		{"empty title", map[string]interface{}{"title": ""}, "title must not be empty"},
		{"empty id", map[string]interface{}{"id": " "}, "id must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModelOutput(successJSONFor(t, sampleFields(), tt.extra))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseModelOutputRejectsNulls(t *testing.T) {
	raw := strings.Replace(successJSONFor(t, sampleFields(), nil), `"notes":""`, `"notes":null`, 1)
	if _, err := ParseModelOutput(raw); err == nil || !strings.Contains(err.Error(), "must not be null") {
		t.Fatalf("expected null rejection, got %v", err)
	}
	raw = strings.Replace(successJSONFor(t, sampleFields(), nil), `"images":[]`, `"images":[null]`, 1)
	if _, err := ParseModelOutput(raw); err == nil {
		t.Fatal("expected null list element rejection")
	}
}

func TestDecodeModelOutputNormalizesToFailed(t *testing.T) {
	ext := DecodeModelOutput("{oops")
	if ext.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", ext.Status)
	}
	if !strings.HasPrefix(ext.Reason, "invalid model output: ") {
		t.Fatalf("unexpected reason %q", ext.Reason)
	}

	passthrough := DecodeModelOutput(`{"result":{"status":"failed","reason":"blurry photo"}}`)
	if passthrough.Reason != "blurry photo" {
		t.Fatalf("expected model reason verbatim, got %q", passthrough.Reason)
	}
}

func TestExtractionJSONRoundTrip(t *testing.T) {
	for _, ext := range []Extraction{Pending(), InProgress(), Failed("nope"), Succeeded(sampleFields())} {
		data, err := json.Marshal(ext)
		if err != nil {
			t.Fatalf("marshal %s: %v", ext.Status, err)
		}
		var back Extraction
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", ext.Status, err)
		}
		if back.Status != ext.Status || back.Reason != ext.Reason {
			t.Fatalf("round trip mismatch: %+v vs %+v", ext, back)
		}
		if ext.Fields != nil && back.Fields.Title != ext.Fields.Title {
			t.Fatalf("fields lost in round trip")
		}
	}

	data, _ := json.Marshal(Succeeded(sampleFields()))
	if !strings.Contains(string(data), `"status":"success"`) || !strings.Contains(string(data), `"title":"Best Pancakes"`) {
		t.Fatalf("expected flattened union, got %s", data)
	}
}

func TestResponseSchemaListsEveryField(t *testing.T) {
	schema := ResponseSchema()
	result := schema["properties"].(map[string]interface{})["result"].(map[string]interface{})
	variants := result["anyOf"].([]interface{})
	if len(variants) != 2 {
		t.Fatalf("expected two variants, got %d", len(variants))
	}
	success := variants[0].(map[string]interface{})
	required := success["required"].([]string)
	if len(required) != len(fieldSpecs)+1 {
		t.Fatalf("expected %d required keys, got %d", len(fieldSpecs)+1, len(required))
	}
	if success["additionalProperties"] != false {
		t.Fatal("success variant must forbid additional properties")
	}
}
