package models

import "time"

// GalleryImage is one generated image in a user's gallery. Rows are created
// by the generation worker and only ever read or deleted afterwards.
type GalleryImage struct {
	ID        string
	UserID    string
	ImageURL  string
	Prompt    string
	Style     string
	Model     string
	ExpireAt  *time.Time
	CreatedAt time.Time
}

// GenerationJob is the payload carried on the generate:jobs stream.
type GenerationJob struct {
	JobID      string `json:"jobId"`
	UserID     string `json:"userId"`
	Prompt     string `json:"prompt"`
	Style      string `json:"style"`
	EnqueuedAt int64  `json:"enqueuedAt,string"`
}
