package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindList
)

type fieldSpec struct {
	name     string
	kind     fieldKind
	nonEmpty bool
}

// Field order matches the JSON tags on Fields.
var fieldSpecs = []fieldSpec{
	{"id", kindString, true},
	{"title", kindString, true},
	{"text", kindString, false},
	{"images", kindList, false},
	{"categories", kindList, false},
	{"yield", kindString, false},
	{"prepTime", kindString, false},
	{"cookTime", kindString, false},
	{"totalTime", kindString, false},
	{"ingredients", kindString, false},
	{"instructions", kindString, false},
	{"notes", kindString, false},
	{"nutrition", kindString, false},
	{"link", kindString, false},
}

// ValidationError describes model output or an import that does not match
// the recipe schema.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func invalid(format string, args ...interface{}) error {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}

// DecodeModelOutput is the total form of ParseModelOutput: any validation
// problem becomes a failed extraction carrying the problem as its reason.
func DecodeModelOutput(raw string) Extraction {
	ext, err := ParseModelOutput(raw)
	if err != nil {
		return Failed("invalid model output: " + err.Error())
	}
	return ext
}

// ParseModelOutput strictly decodes {"result": {...}} as produced by the
// model. Unknown keys, missing keys and nulls are rejected, never coerced.
func ParseModelOutput(raw string) (Extraction, error) {
	var envelope map[string]json.RawMessage
	if err := decodeSingle([]byte(raw), &envelope); err != nil {
		return Extraction{}, invalid("malformed JSON: %v", err)
	}
	if envelope == nil {
		return Extraction{}, invalid("expected a JSON object")
	}
	if err := checkKeys(envelope, []string{"result"}); err != nil {
		return Extraction{}, err
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(envelope["result"], &result); err != nil || result == nil {
		return Extraction{}, invalid("result must be an object")
	}

	var status string
	if err := json.Unmarshal(result["status"], &status); err != nil {
		return Extraction{}, invalid("result.status must be a string")
	}

	switch Status(status) {
	case StatusFailed:
		if err := checkKeys(result, []string{"status", "reason"}); err != nil {
			return Extraction{}, err
		}
		var reason string
		if err := json.Unmarshal(result["reason"], &reason); err != nil {
			return Extraction{}, invalid("reason must be a string")
		}
		if strings.TrimSpace(reason) == "" {
			return Extraction{}, invalid("reason must not be empty")
		}
		return Failed(reason), nil
	case StatusSuccess:
		delete(result, "status")
		fields, err := decodeFields(result)
		if err != nil {
			return Extraction{}, err
		}
		return Succeeded(fields), nil
	default:
		return Extraction{}, invalid("unsupported result.status %q", status)
	}
}

func decodeFields(obj map[string]json.RawMessage) (Fields, error) {
	names := make([]string, 0, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		names = append(names, spec.name)
	}
	if err := checkKeys(obj, names); err != nil {
		return Fields{}, err
	}

	values := make(map[string]interface{}, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		raw := obj[spec.name]
		switch spec.kind {
		case kindString:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return Fields{}, invalid("%s must be a string", spec.name)
			}
			if spec.nonEmpty && strings.TrimSpace(s) == "" {
				return Fields{}, invalid("%s must not be empty", spec.name)
			}
			values[spec.name] = s
		case kindList:
			var items []*string
			if err := json.Unmarshal(raw, &items); err != nil {
				return Fields{}, invalid("%s must be an array of strings", spec.name)
			}
			list := make([]string, 0, len(items))
			for i, item := range items {
				if item == nil {
					return Fields{}, invalid("%s[%d] must be a string", spec.name, i)
				}
				list = append(list, *item)
			}
			values[spec.name] = list
		}
	}

	return Fields{
		ID:           values["id"].(string),
		Title:        values["title"].(string),
		Text:         values["text"].(string),
		Images:       values["images"].([]string),
		Categories:   values["categories"].([]string),
		Yield:        values["yield"].(string),
		PrepTime:     values["prepTime"].(string),
		CookTime:     values["cookTime"].(string),
		TotalTime:    values["totalTime"].(string),
		Ingredients:  values["ingredients"].(string),
		Instructions: values["instructions"].(string),
		Notes:        values["notes"].(string),
		Nutrition:    values["nutrition"].(string),
		Link:         values["link"].(string),
	}, nil
}

// checkKeys requires obj to hold exactly the keys in want, none of them null.
func checkKeys(obj map[string]json.RawMessage, want []string) error {
	allowed := make(map[string]struct{}, len(want))
	for _, k := range want {
		allowed[k] = struct{}{}
	}

	var unexpected []string
	for k := range obj {
		if _, ok := allowed[k]; !ok {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return invalid("unexpected fields: %s", strings.Join(unexpected, ", "))
	}

	for _, k := range want {
		raw, ok := obj[k]
		if !ok {
			return invalid("missing field %s", k)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return invalid("field %s must not be null", k)
		}
	}
	return nil
}

// decodeSingle decodes exactly one JSON value and rejects trailing data.
func decodeSingle(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// ResponseSchema is the JSON Schema handed to providers that support
// constrained decoding. It describes the same shape ParseModelOutput accepts.
func ResponseSchema() map[string]interface{} {
	properties := map[string]interface{}{
		"status": map[string]interface{}{"type": "string", "enum": []string{string(StatusSuccess)}},
	}
	required := []string{"status"}
	for _, spec := range fieldSpecs {
		switch spec.kind {
		case kindString:
			properties[spec.name] = map[string]interface{}{"type": "string"}
		case kindList:
			properties[spec.name] = map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			}
		}
		required = append(required, spec.name)
	}

	success := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             required,
		"properties":           properties,
	}
	failed := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"status", "reason"},
		"properties": map[string]interface{}{
			"status": map[string]interface{}{"type": "string", "enum": []string{string(StatusFailed)}},
			"reason": map[string]interface{}{"type": "string"},
		},
	}

	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"result"},
		"properties": map[string]interface{}{
			"result": map[string]interface{}{"anyOf": []interface{}{success, failed}},
		},
	}
}
