package models

import (
	"database/sql"
	"time"
)

// Adoption request statuses
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// Housing values
const (
	HousingOwn  = "own"
	HousingRent = "rent"
)

// House types
const (
	HouseTypeHouse     = "house"
	HouseTypeApartment = "apartment"
	HouseTypeOther     = "other"
)

// ValidRequestStatus reports whether s is a known request status.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	}
	return false
}

// AdoptionRequest represents a row in the 'adoption_requests' table
type AdoptionRequest struct {
	ID         int64          `db:"id" json:"id"`
	Reference  string         `db:"reference" json:"reference"`
	AnimalID   int64          `db:"animal_id" json:"animal_id"`
	UserID     sql.NullString `db:"user_id" json:"-"`
	FullName   string         `db:"full_name" json:"full_name"`
	Age        int            `db:"age" json:"age"`
	CURP       string         `db:"curp" json:"curp"`
	Address    string         `db:"address" json:"address"`
	Phone      string         `db:"phone" json:"phone"`
	Email      string         `db:"email" json:"email"`
	FamilySize int            `db:"family_size" json:"family_size"`
	Housing    string         `db:"housing" json:"housing"`
	HouseType  string         `db:"house_type" json:"house_type"`
	Status     string         `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// NewAdoptionRequest creates a pending request with default values
func NewAdoptionRequest() *AdoptionRequest {
	now := time.Now().UTC()
	return &AdoptionRequest{
		Status:    RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
