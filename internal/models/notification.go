package models

import (
	"database/sql"
	"time"
)

// Notification represents a row in the 'notifications' table
type Notification struct {
	ID        int64         `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	RequestID sql.NullInt64 `db:"request_id" json:"-"`
	Message   string        `db:"message" json:"message"`
	IsRead    bool          `db:"is_read" json:"is_read"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
