package view

import (
	"encoding/json"

	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/segment"
)

type howToStep struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type comment struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type nutrition struct {
	Type        string `json:"@type"`
	Description string `json:"description"`
}

// RecipeLD is the schema.org/Recipe rendering of a success payload.
type RecipeLD struct {
	Context            string      `json:"@context"`
	Type               string      `json:"@type"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	InLanguage         string      `json:"inLanguage,omitempty"`
	Image              []string    `json:"image"`
	RecipeYield        string      `json:"recipeYield"`
	PrepTime           string      `json:"prepTime"`
	CookTime           string      `json:"cookTime"`
	TotalTime          string      `json:"totalTime"`
	RecipeIngredient   []string    `json:"recipeIngredient"`
	RecipeInstructions []howToStep `json:"recipeInstructions"`
	Comment            comment     `json:"comment"`
	Nutrition          nutrition   `json:"nutrition"`
	URL                string      `json:"url"`
}

func ToJSONLD(f recipe.Fields, imageURL, lang string) RecipeLD {
	images := []string{}
	if imageURL != "" {
		images = append(images, imageURL)
	}
	images = append(images, f.Images...)

	ingredients := []string{}
	for _, group := range segment.ParseIngredients(f.Ingredients) {
		ingredients = append(ingredients, group.Items...)
	}

	steps := []howToStep{}
	for _, text := range segment.ParseInstructions(f.Instructions) {
		steps = append(steps, howToStep{Type: "HowToStep", Text: text})
	}

	return RecipeLD{
		Context:            "https://schema.org",
		Type:               "Recipe",
		Name:               f.Title,
		Description:        f.Text,
		InLanguage:         lang,
		Image:              images,
		RecipeYield:        f.Yield,
		PrepTime:           f.PrepTime,
		CookTime:           f.CookTime,
		TotalTime:          f.TotalTime,
		RecipeIngredient:   ingredients,
		RecipeInstructions: steps,
		Comment:            comment{Type: "Comment", Text: f.Notes},
		Nutrition:          nutrition{Type: "NutritionInformation", Description: f.Nutrition},
		URL:                f.Link,
	}
}

// JSONLD renders the document for an inline <script type="application/ld+json">.
// encoding/json escapes <, >, &, U+2028 and U+2029, so the output cannot
// close the script element or break a JavaScript string.
func JSONLD(f recipe.Fields, imageURL, lang string) ([]byte, error) {
	return json.Marshal(ToJSONLD(f, imageURL, lang))
}
