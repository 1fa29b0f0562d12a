package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // extraction.requested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// StringField returns a string value from the event payload, or "".
func (e Event) StringField(key string) string {
	if e.Data == nil {
		return ""
	}
	v, _ := e.Data[key].(string)
	return v
}

// API models
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

type UploadResponse struct {
	StorageID string `json:"storageId"`
}

type CreateRecipeRequest struct {
	ImageID string `json:"imageId"`
}

type CreateRecipeResponse struct {
	ID string `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
