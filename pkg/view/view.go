// Package view projects persisted recipes into the shapes the UI reads.
// Nothing here writes back to the recipe.
package view

import (
	"time"

	"github.com/recipelens/platform/pkg/duration"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/segment"
)

const (
	DisplayProcessing = "processing"
	DisplaySucceeded  = "succeeded"
	DisplayFailed     = "failed"
)

// View is the client-facing shape of one recipe.
type View struct {
	ID            string        `json:"id"`
	ImageURL      *string       `json:"imageUrl"`
	Status        recipe.Status `json:"status"`
	DisplayStatus string        `json:"displayStatus"`
	Reason        string        `json:"reason,omitempty"`
	Recipe        *RecipeView   `json:"melaRecipe,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// RecipeView is a success payload with the durations rendered for a locale.
// The raw ISO strings stay alongside the display strings.
type RecipeView struct {
	recipe.Fields
	PrepTimeDisplay  string `json:"prepTimeDisplay"`
	CookTimeDisplay  string `json:"cookTimeDisplay"`
	TotalTimeDisplay string `json:"totalTimeDisplay"`
}

// DisplayStatus collapses the extraction status for display.
func DisplayStatus(s recipe.Status) string {
	switch s {
	case recipe.StatusPending, recipe.StatusInProgress:
		return DisplayProcessing
	case recipe.StatusSuccess:
		return DisplaySucceeded
	default:
		return DisplayFailed
	}
}

// Serialize projects rec with its resolved image URL ("" when it could not be
// resolved). A document that cannot be decoded is shown as failed.
func Serialize(rec *recipe.Recipe, imageURL, locale string) View {
	v := View{
		ID:        rec.ID,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if imageURL != "" {
		v.ImageURL = &imageURL
	}

	ext, err := rec.DecodeExtraction()
	if err != nil {
		v.Status = recipe.StatusFailed
		v.DisplayStatus = DisplayFailed
		v.Reason = "stored extraction is unreadable"
		return v
	}

	v.Status = ext.Status
	v.DisplayStatus = DisplayStatus(ext.Status)
	switch ext.Status {
	case recipe.StatusSuccess:
		if ext.Fields != nil {
			v.Recipe = project(*ext.Fields, locale)
		}
	case recipe.StatusFailed:
		v.Reason = ext.Reason
	}
	return v
}

func project(f recipe.Fields, locale string) *RecipeView {
	return &RecipeView{
		Fields:           f,
		PrepTimeDisplay:  duration.Format(f.PrepTime, locale),
		CookTimeDisplay:  duration.Format(f.CookTime, locale),
		TotalTimeDisplay: duration.Format(f.TotalTime, locale),
	}
}

// Segments is the render-time split of a recipe's free-text blocks.
type Segments struct {
	Ingredients  []segment.IngredientGroup `json:"ingredients"`
	Instructions []string                  `json:"instructions"`
}

func Segmented(r *RecipeView) Segments {
	if r == nil {
		return Segments{Ingredients: []segment.IngredientGroup{}, Instructions: []string{}}
	}
	return Segments{
		Ingredients:  segment.ParseIngredients(r.Ingredients),
		Instructions: segment.ParseInstructions(r.Instructions),
	}
}
