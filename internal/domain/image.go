package domain

import "time"

// Image is an image resource attached to events and places. Exactly one of
// S3Key (bytes we stored) or LinkURL (remote image) is set.
type Image struct {
	ID          string    `json:"id" db:"id"`
	UploadedBy  string    `json:"uploaded_by" db:"uploaded_by"`
	S3Key       string    `json:"s3_key,omitempty" db:"s3_key"`
	LinkURL     string    `json:"link_url,omitempty" db:"link_url"`
	AltText     string    `json:"alt_text" db:"alt_text"`
	ContentType string    `json:"content_type,omitempty" db:"content_type"`
	Width       int       `json:"width,omitempty" db:"width"`
	Height      int       `json:"height,omitempty" db:"height"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}
