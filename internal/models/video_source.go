package models

import (
	"database/sql"
	"time"
)

// Source statuses
const (
	SourceActive   = "active"
	SourceInactive = "inactive"
)

// VideoSource represents a row in the 'video_sources' table: an RSS/Atom
// feed published by a shelter whose entries link to videos.
type VideoSource struct {
	ID              int64          `db:"id"`
	URL             string         `db:"url"`
	AnimalID        sql.NullInt64  `db:"animal_id"`
	Comments        sql.NullString `db:"comments"`
	Status          string         `db:"status"`
	FailuresCount   int            `db:"failures_count"`
	LastError       sql.NullString `db:"last_error"`
	LastRetrievedAt sql.NullTime   `db:"last_retrieved_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// NewVideoSource creates a new VideoSource with default values
func NewVideoSource(url string) *VideoSource {
	now := time.Now().UTC()
	return &VideoSource{
		URL:       url,
		Status:    SourceActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
