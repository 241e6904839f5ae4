package models

import (
	"database/sql"
	"time"
)

// Animal statuses
const (
	AnimalAvailable = "available"
	AnimalAdopted   = "adopted"
)

// Animal represents a row in the 'animals' table. Most columns are nullable
// because shelters often register an animal before its profile is complete.
type Animal struct {
	ID          int64          `db:"id"`
	Name        sql.NullString `db:"name"`
	Age         sql.NullInt64  `db:"age"`
	Species     sql.NullString `db:"species"`
	Location    sql.NullString `db:"location"`
	Description sql.NullString `db:"description"`
	ImageURL    sql.NullString `db:"image_url"`
	Status      string         `db:"status"`
	AdoptedAt   sql.NullTime   `db:"adopted_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Available reports whether the animal can still receive adoption requests.
func (a *Animal) Available() bool {
	return a.Status == AnimalAvailable
}
