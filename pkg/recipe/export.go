package recipe

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ExportExtension   = ".melarecipe"
	ExportContentType = "application/json"
)

// Export renders the interchange document: exactly the success fields.
func Export(f Fields) ([]byte, error) {
	return json.MarshalIndent(f.normalized(), "", "  ")
}

// ParseExport reads an interchange document with the same strictness as
// model output.
func ParseExport(data []byte) (Fields, error) {
	var obj map[string]json.RawMessage
	if err := decodeSingle(data, &obj); err != nil {
		return Fields{}, invalid("malformed JSON: %v", err)
	}
	if obj == nil {
		return Fields{}, invalid("expected a JSON object")
	}
	return decodeFields(obj)
}

// Filename derives "<slug>.melarecipe" from a recipe title.
func Filename(title string) string {
	return Slug(title) + ExportExtension
}

// Slug lowercases title, strips diacritics (ß becomes ss) and collapses every
// run of other characters into a single hyphen. Empty results become "recipe".
func Slug(title string) string {
	s := strings.NewReplacer("ß", "ss", "ẞ", "SS").Replace(title)
	// A transform chain keeps per-use buffers, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)

	var b strings.Builder
	pendingHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return "recipe"
	}
	return b.String()
}
