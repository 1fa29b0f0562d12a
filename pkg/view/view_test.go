package view

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/recipelens/platform/pkg/recipe"
	"gorm.io/datatypes"
)

func fields() recipe.Fields {
	return recipe.Fields{
		ID:           "lemon-cake",
		Title:        "Lemon Cake",
		Text:         "Bright and soft.",
		Yield:        "8 slices",
		PrepTime:     "PT20M",
		CookTime:     "PT1H30M",
		TotalTime:    "about two hours",
		Ingredients:  "# Cake\n200 g flour\n2 eggs\n# Glaze\n100 g sugar",
		Instructions: "Mix.\n\nBake.",
		Notes:        "Keeps for 3 days.",
		Nutrition:    "300 kcal",
		Link:         "grandma",
	}
}

func record(t *testing.T, ext recipe.Extraction) *recipe.Recipe {
	t.Helper()
	doc, err := json.Marshal(ext)
	if err != nil {
		t.Fatalf("marshal extraction: %v", err)
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &recipe.Recipe{
		ID:         "r1",
		ImageRef:   "img-1",
		Status:     ext.Status,
		Extraction: datatypes.JSON(doc),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDisplayStatus(t *testing.T) {
	tests := []struct {
		status recipe.Status
		want   string
	}{
		{recipe.StatusPending, DisplayProcessing},
		{recipe.StatusInProgress, DisplayProcessing},
		{recipe.StatusSuccess, DisplaySucceeded},
		{recipe.StatusFailed, DisplayFailed},
		{recipe.Status("mystery"), DisplayFailed},
		{recipe.Status(""), DisplayFailed},
	}
	for _, tt := range tests {
		if got := DisplayStatus(tt.status); got != tt.want {
			t.Fatalf("DisplayStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestSerializeSuccess(t *testing.T) {
	rec := record(t, recipe.Succeeded(fields()))
	before := string(rec.Extraction)

	v := Serialize(rec, "https://cdn.test/img-1.jpg", "en")
	if v.DisplayStatus != DisplaySucceeded || v.Recipe == nil {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.ImageURL == nil || *v.ImageURL != "https://cdn.test/img-1.jpg" {
		t.Fatalf("unexpected image url %v", v.ImageURL)
	}
	if v.Recipe.PrepTimeDisplay != "20 min" || v.Recipe.CookTimeDisplay != "1 hr, 30 min" {
		t.Fatalf("unexpected durations %q / %q", v.Recipe.PrepTimeDisplay, v.Recipe.CookTimeDisplay)
	}
	if v.Recipe.TotalTimeDisplay != "about two hours" {
		t.Fatalf("unparseable durations should pass through, got %q", v.Recipe.TotalTimeDisplay)
	}
	if v.Recipe.PrepTime != "PT20M" {
		t.Fatal("raw duration must be kept")
	}
	if string(rec.Extraction) != before {
		t.Fatal("Serialize must not mutate the record")
	}

	de := Serialize(rec, "", "de-AT")
	if de.Recipe.CookTimeDisplay != "1 Std., 30 Min." {
		t.Fatalf("unexpected German duration %q", de.Recipe.CookTimeDisplay)
	}
	if de.ImageURL != nil {
		t.Fatal("unresolved image should serialize as null")
	}
}

func TestSerializeNonTerminalAndFailed(t *testing.T) {
	for _, ext := range []recipe.Extraction{recipe.Pending(), recipe.InProgress()} {
		v := Serialize(record(t, ext), "", "en")
		if v.DisplayStatus != DisplayProcessing || v.Recipe != nil || v.Reason != "" {
			t.Fatalf("unexpected view for %s: %+v", ext.Status, v)
		}
	}

	v := Serialize(record(t, recipe.Failed("no food in image")), "", "en")
	if v.DisplayStatus != DisplayFailed || v.Reason != "no food in image" || v.Recipe != nil {
		t.Fatalf("unexpected failed view %+v", v)
	}
}

func TestSerializeUnreadableDocument(t *testing.T) {
	rec := record(t, recipe.Pending())
	rec.Extraction = datatypes.JSON(`{"status":"exploded"}`)

	v := Serialize(rec, "", "en")
	if v.DisplayStatus != DisplayFailed || v.Reason == "" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestViewJSONShape(t *testing.T) {
	data, err := json.Marshal(Serialize(record(t, recipe.Succeeded(fields())), "", "fr"))
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if decoded["imageUrl"] != nil {
		t.Fatalf("imageUrl should be null, got %v", decoded["imageUrl"])
	}
	mela, ok := decoded["melaRecipe"].(map[string]interface{})
	if !ok {
		t.Fatalf("melaRecipe missing: %s", data)
	}
	if mela["title"] != "Lemon Cake" || mela["cookTimeDisplay"] != "1\u202fh et 30\u00a0min" {
		t.Fatalf("unexpected melaRecipe %v", mela)
	}
	if images, ok := mela["images"].([]interface{}); !ok || len(images) != 0 {
		t.Fatalf("images should be an empty list, got %v", mela["images"])
	}
}

func TestSegmented(t *testing.T) {
	v := Serialize(record(t, recipe.Succeeded(fields())), "", "en")
	seg := Segmented(v.Recipe)
	if len(seg.Ingredients) != 2 || *seg.Ingredients[1].Heading != "Glaze" {
		t.Fatalf("unexpected groups %+v", seg.Ingredients)
	}
	if len(seg.Instructions) != 2 {
		t.Fatalf("unexpected steps %v", seg.Instructions)
	}

	empty := Segmented(nil)
	if empty.Ingredients == nil || empty.Instructions == nil {
		t.Fatal("segments must never be nil")
	}
}

func TestJSONLD(t *testing.T) {
	f := fields()
	f.Notes = "</script><script>alert(1)</script>\u2028\u2029"

	data, err := JSONLD(f, "https://cdn.test/img-1.jpg", "en")
	if err != nil {
		t.Fatalf("JSONLD failed: %v", err)
	}
	out := string(data)
	if strings.ContainsAny(out, "<\u2028\u2029") {
		t.Fatalf("output is not safe to inline: %s", out)
	}
	for _, want := range []string{`\u003c/script\u003e`, `\u2028`, `\u2029`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected escaped %s in %s", want, out)
		}
	}

	var doc RecipeLD
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Type != "Recipe" || doc.Name != "Lemon Cake" || doc.InLanguage != "en" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(doc.RecipeIngredient) != 3 || doc.RecipeIngredient[2] != "100 g sugar" {
		t.Fatalf("unexpected ingredients %v", doc.RecipeIngredient)
	}
	if len(doc.RecipeInstructions) != 2 || doc.RecipeInstructions[0].Type != "HowToStep" {
		t.Fatalf("unexpected instructions %+v", doc.RecipeInstructions)
	}
	if len(doc.Image) != 1 || doc.Comment.Text != f.Notes {
		t.Fatalf("unexpected image/comment %+v", doc)
	}
}
