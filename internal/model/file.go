package model

import "time"

// FileMetadata describes an object uploaded to blob storage. The returned URL
// is what clients attach to messages as a MediaItem.
type FileMetadata struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Key         string    `json:"key"`
	Bucket      string    `json:"bucket"`
	URL         string    `json:"url"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
