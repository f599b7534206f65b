package models

import "time"

// UploadedFile records a blob written by the uploader so that blobs whose post
// was never persisted can be cleaned up later.
type UploadedFile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     string    `gorm:"size:64;index;not null" json:"owner_id"`
	FilePath    string    `gorm:"size:1024;not null" json:"file_path"`
	URL         string    `gorm:"size:1024;not null" json:"url"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
