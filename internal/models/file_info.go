package models

import "time"

// FileInfo describes an uploaded recording file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "decoding", "ready", "error"
	TopicCount int       `json:"topicCount,omitempty"`
	DurationS  float64   `json:"durationS,omitempty"`
}

const (
	FileStatusUploaded = "uploaded"
	FileStatusDecoding = "decoding"
	FileStatusReady    = "ready"
	FileStatusError    = "error"
)
