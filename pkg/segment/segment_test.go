package segment

import (
	"reflect"
	"testing"
)

func heading(groups []IngredientGroup, i int) string {
	if groups[i].Heading == nil {
		return "<nil>"
	}
	return *groups[i].Heading
}

func TestParseIngredients(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		headings []string
		items    [][]string
	}{
		{"empty", "", nil, nil},
		{"whitespace only", "   \n\n   ", nil, nil},
		{"single item", "2 eggs", []string{"<nil>"}, [][]string{{"2 eggs"}}},
		{
			"no headings", "2 cups flour\n1 tsp salt\n3 eggs",
			[]string{"<nil>"}, [][]string{{"2 cups flour", "1 tsp salt", "3 eggs"}},
		},
		{
			"two headings", "# Dough\nflour\n# Filling\neggs",
			[]string{"Dough", "Filling"}, [][]string{{"flour"}, {"eggs"}},
		},
		{
			"blank lines dropped", "2 cups flour\n\n1 tsp salt\n\n3 eggs",
			[]string{"<nil>"}, [][]string{{"2 cups flour", "1 tsp salt", "3 eggs"}},
		},
		{
			"lines trimmed", "  2 cups flour  \n  1 tsp salt  ",
			[]string{"<nil>"}, [][]string{{"2 cups flour", "1 tsp salt"}},
		},
		{
			"heading with no items", "# Heading with no items\n# Another heading\n1 cup sugar",
			[]string{"Heading with no items", "Another heading"}, [][]string{{}, {"1 cup sugar"}},
		},
		{"heading only", "# Just a heading", []string{"Just a heading"}, [][]string{{}}},
		{
			"preamble before heading", "salt\n# Sauce\ncream",
			[]string{"<nil>", "Sauce"}, [][]string{{"salt"}, {"cream"}},
		},
		{
			"hash without space is an item", "#1 pick\n  #  Spaced  ",
			[]string{"<nil>", "Spaced"}, [][]string{{"#1 pick"}, {}},
		},
		{
			"windows line endings", "# Dough\r\nflour\r\n",
			[]string{"Dough"}, [][]string{{"flour"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := ParseIngredients(tt.input)
			if groups == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(groups) != len(tt.headings) {
				t.Fatalf("expected %d groups, got %d: %+v", len(tt.headings), len(groups), groups)
			}
			for i := range groups {
				if got := heading(groups, i); got != tt.headings[i] {
					t.Fatalf("group %d heading = %q, want %q", i, got, tt.headings[i])
				}
				if !reflect.DeepEqual(groups[i].Items, tt.items[i]) {
					t.Fatalf("group %d items = %q, want %q", i, groups[i].Items, tt.items[i])
				}
			}
		})
	}
}

func TestParseInstructions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "Preheat oven to 350°F\nMix ingredients\nBake for 30 minutes",
			[]string{"Preheat oven to 350°F", "Mix ingredients", "Bake for 30 minutes"}},
		{"blank lines", "Step 1\n\nStep 2", []string{"Step 1", "Step 2"}},
		{"trimmed", "  Step 1  \n  Step 2  ", []string{"Step 1", "Step 2"}},
		{"empty", "", []string{}},
		{"whitespace", "   \n\n   ", []string{}},
		{"internal whitespace kept", "Mix   ingredients   well", []string{"Mix   ingredients   well"}},
		{"headings are plain steps", "# Prep\nChop", []string{"# Prep", "Chop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseInstructions(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseInstructions(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSegmentationIsDeterministic(t *testing.T) {
	input := "# A\nx\ny\n# B\nz"
	if !reflect.DeepEqual(ParseIngredients(input), ParseIngredients(input)) {
		t.Fatal("expected identical output for identical input")
	}
}
