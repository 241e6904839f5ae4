package models

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MinApplicantAge is the minimum age to apply for an adoption.
	MinApplicantAge = 18
	// CURPLength is the length of a Mexican population registry key.
	CURPLength = 18
)

// ValidationError lists the invalid fields of a submitted form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid adoption request: " + strings.Join(parts, "; ")
}

// Normalize trims the free-text fields and canonicalises enums and the CURP.
func (r *AdoptionRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.CURP = strings.ToUpper(strings.TrimSpace(r.CURP))
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.Housing = strings.ToLower(strings.TrimSpace(r.Housing))
	r.HouseType = strings.ToLower(strings.TrimSpace(r.HouseType))
}

// Validate checks the applicant's form. termsAccepted is not stored, so it
// is passed separately.
func (r *AdoptionRequest) Validate(termsAccepted bool) error {
	fields := map[string]string{}
	if r.AnimalID <= 0 {
		fields["animal_id"] = "required"
	}
	if r.FullName == "" {
		fields["full_name"] = "required"
	}
	if r.Age < MinApplicantAge {
		fields["age"] = fmt.Sprintf("must be at least %d", MinApplicantAge)
	}
	if utf8.RuneCountInString(r.CURP) != CURPLength {
		fields["curp"] = fmt.Sprintf("must be %d characters", CURPLength)
	}
	if r.Address == "" {
		fields["address"] = "required"
	}
	if r.Phone == "" {
		fields["phone"] = "required"
	}
	if _, err := mail.ParseAddress(r.Email); r.Email == "" || err != nil {
		fields["email"] = "must be a valid address"
	}
	if r.FamilySize < 1 {
		fields["family_size"] = "must be at least 1"
	}
	if r.Housing != HousingOwn && r.Housing != HousingRent {
		fields["housing"] = "must be own or rent"
	}
	switch r.HouseType {
	case HouseTypeHouse, HouseTypeApartment, HouseTypeOther:
	default:
		fields["house_type"] = "must be house, apartment or other"
	}
	if !termsAccepted {
		fields["agree_terms"] = "must be accepted"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
