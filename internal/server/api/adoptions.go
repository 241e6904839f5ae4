package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"adoptik/petfeed/internal/models"
	"adoptik/petfeed/internal/server/pagination"
)

// UserIDHeader carries the id of the signed-in visitor.
const UserIDHeader = "X-User-ID"

type adoptionForm struct {
	AnimalID   int64  `json:"animal_id"`
	FullName   string `json:"full_name"`
	Age        int    `json:"age"`
	CURP       string `json:"curp"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	FamilySize int    `json:"family_size"`
	Housing    string `json:"housing"`
	HouseType  string `json:"house_type"`
	AgreeTerms bool   `json:"agree_terms"`
}

type createdAdoption struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type adoptionList struct {
	Items      []models.AdoptionRequest `json:"items"`
	NextCursor *string                  `json:"next_cursor,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// CreateAdoptionRequest handles POST /v1/adoption-requests.
func (h *Handler) CreateAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	var form adoptionForm
	if !decodeBody(w, r, &form) {
		return
	}

	req := models.NewAdoptionRequest()
	req.AnimalID = form.AnimalID
	req.FullName = form.FullName
	req.Age = form.Age
	req.CURP = form.CURP
	req.Address = form.Address
	req.Phone = form.Phone
	req.Email = form.Email
	req.FamilySize = form.FamilySize
	req.Housing = form.Housing
	req.HouseType = form.HouseType
	if user := strings.TrimSpace(r.Header.Get(UserIDHeader)); user != "" {
		req.UserID = sql.NullString{String: user, Valid: true}
	}
	req.Normalize()

	if err := req.Validate(form.AgreeTerms); err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("Rejected adoption form")
		writeStoreError(w, r, err)
		return
	}
	if err := h.store.CreateAdoptionRequest(r.Context(), req); err != nil {
		writeStoreError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().
		Int64("request_id", req.ID).
		Int64("animal_id", req.AnimalID).
		Str("reference", req.Reference).
		Msg("Adoption request created")
	writeJSON(w, r, http.StatusCreated, createdAdoption{ID: req.ID, Reference: req.Reference, Status: req.Status})
}

// ListAdoptionRequests handles GET /v1/adoption-requests?status=&limit=&cursor=.
func (h *Handler) ListAdoptionRequests(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()
	status := query.Get("status")
	if status != "" && !models.ValidRequestStatus(status) {
		writeError(w, r, http.StatusBadRequest, "status must be pending, accepted or rejected")
		return
	}

	limit, ok := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid 'limit' parameter")
		return
	}

	var beforeID int64
	if c := query.Get("cursor"); c != "" {
		id, err := pagination.DecodeCursor(c, status)
		if err != nil {
			log.Warn().Err(err).Str("cursor", c).Msg("Invalid 'cursor' parameter")
			writeError(w, r, http.StatusBadRequest, "invalid 'cursor' parameter")
			return
		}
		beforeID = id
	}

	items, err := h.store.ListAdoptionRequests(r.Context(), status, limit+1, beforeID) // Fetch one extra
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := adoptionList{Items: items}
	if len(items) > limit {
		resp.Items = items[:limit]
		next := pagination.EncodeCursor(status, resp.Items[limit-1].ID)
		resp.NextCursor = &next
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// UpdateAdoptionStatus handles PATCH /v1/adoption-requests/{id}/status.
func (h *Handler) UpdateAdoptionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if !decodeBody(w, r, &body) {
		return
	}

	updated, err := h.store.UpdateAdoptionStatus(r.Context(), id, strings.ToLower(strings.TrimSpace(body.Status)))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int64("request_id", id).Str("status", updated.Status).Msg("Adoption request status updated")
	writeJSON(w, r, http.StatusOK, updated)
}

// ListNotifications handles GET /v1/notifications?unread=true.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid 'limit' parameter")
		return
	}
	unread := r.URL.Query().Get("unread") == "true"

	out, err := h.store.ListNotifications(r.Context(), user, unread, limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// MarkNotificationRead handles POST /v1/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkNotificationRead(r.Context(), user, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errNoUser = errors.New("missing " + UserIDHeader + " header")

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if user == "" {
		hlog.FromRequest(r).Warn().Err(errNoUser).Msg("Anonymous notifications request")
		writeError(w, r, http.StatusUnauthorized, errNoUser.Error())
		return "", false
	}
	return user, true
}
