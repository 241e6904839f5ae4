package models

import (
	"database/sql"
	"time"
)

// Video represents a row in the 'videos' table
type Video struct {
	ID          int64          `db:"id"`
	VideoURL    sql.NullString `db:"video_url"`
	AnimalID    sql.NullInt64  `db:"animal_id"`
	SourceID    sql.NullInt64  `db:"source_id"`
	Title       sql.NullString `db:"title"`
	Likes       int            `db:"likes"`
	Shares      int            `db:"shares"`
	Views       int            `db:"views"`
	PublishedAt sql.NullTime   `db:"published_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

// NewVideo creates a new Video for url
func NewVideo(url string) *Video {
	return &Video{
		VideoURL:  sql.NullString{String: url, Valid: url != ""},
		CreatedAt: time.Now().UTC(),
	}
}
