package recipe

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions may leave s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Fields is the structured recipe payload, in .melarecipe vocabulary.
// Unknown strings are "" and unknown lists are empty, never null.
type Fields struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	Images       []string `json:"images"`
	Categories   []string `json:"categories"`
	Yield        string   `json:"yield"`
	PrepTime     string   `json:"prepTime"`
	CookTime     string   `json:"cookTime"`
	TotalTime    string   `json:"totalTime"`
	Ingredients  string   `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Notes        string   `json:"notes"`
	Nutrition    string   `json:"nutrition"`
	Link         string   `json:"link"`
}

func (f Fields) normalized() Fields {
	if f.Images == nil {
		f.Images = []string{}
	}
	if f.Categories == nil {
		f.Categories = []string{}
	}
	return f
}

// Extraction is the tagged union tracking pipeline progress for one recipe.
// Fields is set only for StatusSuccess and Reason only for StatusFailed.
type Extraction struct {
	Status Status
	Fields *Fields
	Reason string
}

func Pending() Extraction    { return Extraction{Status: StatusPending} }
func InProgress() Extraction { return Extraction{Status: StatusInProgress} }

func Succeeded(f Fields) Extraction {
	f = f.normalized()
	return Extraction{Status: StatusSuccess, Fields: &f}
}

func Failed(reason string) Extraction {
	if reason == "" {
		reason = "extraction failed"
	}
	return Extraction{Status: StatusFailed, Reason: reason}
}

type successJSON struct {
	Status Status `json:"status"`
	Fields
}

type failedJSON struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

type statusJSON struct {
	Status Status `json:"status"`
}

// MarshalJSON flattens the union: {"status":"success", ...fields}.
func (e Extraction) MarshalJSON() ([]byte, error) {
	switch e.Status {
	case StatusSuccess:
		if e.Fields == nil {
			return nil, fmt.Errorf("success extraction without fields")
		}
		return json.Marshal(successJSON{Status: e.Status, Fields: e.Fields.normalized()})
	case StatusFailed:
		return json.Marshal(failedJSON{Status: e.Status, Reason: e.Reason})
	case StatusPending, StatusInProgress:
		return json.Marshal(statusJSON{Status: e.Status})
	default:
		return nil, fmt.Errorf("unknown extraction status %q", e.Status)
	}
}

// UnmarshalJSON reads persisted state. It is lenient about shape because the
// data was validated before it was written; model output goes through
// ParseModelOutput instead.
func (e *Extraction) UnmarshalJSON(data []byte) error {
	var head statusJSON
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Status {
	case StatusSuccess:
		var s successJSON
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f := s.Fields.normalized()
		*e = Extraction{Status: StatusSuccess, Fields: &f}
	case StatusFailed:
		var f failedJSON
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*e = Extraction{Status: StatusFailed, Reason: f.Reason}
	case StatusPending, StatusInProgress:
		*e = Extraction{Status: head.Status}
	default:
		return fmt.Errorf("unknown extraction status %q", head.Status)
	}
	return nil
}

// Recipe is the persisted entity. Status mirrors Extraction.Status so that
// transitions can be guarded in a single conditional UPDATE.
type Recipe struct {
	ID         string         `json:"id" gorm:"primaryKey;column:id"`
	ImageRef   string         `json:"image_ref" gorm:"column:image_ref"`
	Status     Status         `json:"status" gorm:"column:status;index"`
	Extraction datatypes.JSON `json:"extraction" gorm:"column:extraction"`
	CreatedAt  time.Time      `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// DecodeExtraction returns the stored union, falling back to the status
// column for rows written before an extraction document existed.
func (r *Recipe) DecodeExtraction() (Extraction, error) {
	if len(r.Extraction) == 0 {
		return Extraction{Status: r.Status}, nil
	}
	var ext Extraction
	if err := json.Unmarshal(r.Extraction, &ext); err != nil {
		return Extraction{}, fmt.Errorf("decoding extraction for recipe %s: %w", r.ID, err)
	}
	return ext, nil
}
