// Package segment splits the free-text ingredient and instruction blocks of a
// recipe into renderable pieces. Output depends only on the input string.
package segment

import "strings"

const headingPrefix = "# "

// IngredientGroup is a run of ingredient lines under an optional heading.
type IngredientGroup struct {
	Heading *string  `json:"heading"`
	Items   []string `json:"items"`
}

// ParseIngredients groups non-blank lines under "# " headings. Lines before the
// first heading form a group with a nil heading; a heading without items is
// still emitted.
func ParseIngredients(raw string) []IngredientGroup {
	groups := []IngredientGroup{}
	current := IngredientGroup{Items: []string{}}

	flush := func() {
		if current.Heading != nil || len(current.Items) > 0 {
			groups = append(groups, current)
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, headingPrefix) {
			flush()
			heading := strings.TrimSpace(strings.TrimPrefix(trimmed, headingPrefix))
			current = IngredientGroup{Heading: &heading, Items: []string{}}
			continue
		}
		current.Items = append(current.Items, trimmed)
	}
	flush()

	return groups
}

// ParseInstructions returns the trimmed, non-blank lines of raw.
func ParseInstructions(raw string) []string {
	steps := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}
	return steps
}
