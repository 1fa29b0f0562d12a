package llm

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prompt is the instruction set sent with every image.
type Prompt struct {
	System      string  `yaml:"system" json:"system"`
	User        string  `yaml:"user" json:"user"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// LoadPrompt reads a YAML prompt file. An empty path selects DefaultPrompt.
func LoadPrompt(path string) (Prompt, error) {
	if path == "" {
		return DefaultPrompt(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPrompt(), err
	}

	prompt := DefaultPrompt()
	if err := yaml.Unmarshal(content, &prompt); err != nil {
		return Prompt{}, err
	}

	if prompt.System == "" || prompt.User == "" {
		return Prompt{}, errors.New("prompt file must define system and user text")
	}
	if prompt.Temperature < 0 || prompt.Temperature > 2 {
		return Prompt{}, errors.New("prompt temperature must be between 0 and 2")
	}

	return prompt, nil
}

func DefaultPrompt() Prompt {
	return Prompt{
		System: "You generate a Mela .melarecipe JSON object from an image. " +
			"Output only valid JSON with all required fields.",
		User: `Generate a complete .melarecipe JSON for the dish in this image.

Requirements:
- Output only JSON, no markdown or code fences.
- Wrap the answer as {"result": {...}}.
- If the image shows a dish or a recipe, set result.status to "success" and include these fields: id, title, text, images, categories, yield, prepTime, cookTime, totalTime, ingredients, instructions, notes, nutrition, link.
- If no recipe can be derived from the image, set result.status to "failed" and give a short reason in result.reason.
- Use empty strings for unknown string fields and empty arrays for unknown lists.
- categories: Always set to an empty array [].
- prepTime, cookTime, totalTime: ISO-8601 durations using only days, hours and minutes (for example PT1H30M), or an empty string.
- ingredients: newline-separated string (\n). Supports Markdown: links and # for group titles.
- instructions: newline-separated string (\n). Supports Markdown: #, *, **, and links.
- notes: Supports Markdown: #, *, **, and links.
- nutrition: Supports Markdown: #, *, **, and links.
- text: Short description displayed after title. Supports Markdown: links only.
- id: Use a UUID or recipe name as identifier. Do not leave empty.
- link: Source of the recipe (can be any string, not just URL).
- images: Array of base64-encoded image strings; empty array if none.
`,
		Temperature: 0.4,
		MaxTokens:   4096,
	}
}
