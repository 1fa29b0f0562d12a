package storage

import "time"

// UploadToken authorizes exactly one upload before it expires.
type UploadToken struct {
	Token     string     `gorm:"primaryKey;column:token"`
	ExpiresAt time.Time  `gorm:"column:expires_at;index"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
}

func (UploadToken) TableName() string {
	return "upload_tokens"
}

// Object is the metadata of a stored image; the bytes live on disk.
type Object struct {
	Ref         string    `json:"ref" gorm:"primaryKey;column:ref"`
	ContentType string    `json:"content_type" gorm:"column:content_type"`
	Size        int64     `json:"size" gorm:"column:size"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Object) TableName() string {
	return "stored_objects"
}
