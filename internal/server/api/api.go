package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/models"
	"adoptik/petfeed/internal/server/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store is the persistence the handlers depend on.
type Store interface {
	VideoPage(ctx context.Context, page, limit int) ([]feed.VideoItem, error)
	IncrementCounter(ctx context.Context, videoID int64, c storage.Counter) error
	AddVideo(ctx context.Context, animalID int64, url string) (*models.Video, error)

	ListAnimals(ctx context.Context, status string) ([]models.Animal, error)
	GetAnimal(ctx context.Context, id int64) (*models.Animal, error)
	UpdateAnimalDescription(ctx context.Context, id int64, description string) error

	CreateAdoptionRequest(ctx context.Context, req *models.AdoptionRequest) error
	ListAdoptionRequests(ctx context.Context, status string, limit int, beforeID int64) ([]models.AdoptionRequest, error)
	UpdateAdoptionStatus(ctx context.Context, id int64, status string) (*models.AdoptionRequest, error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID string, id int64) error
}

// Handler serves the public and admin JSON endpoints. Loggers are taken from
// the request context set up by the hlog middleware.
type Handler struct {
	store           Store
	defaultPageSize int
	maxPageSize     int
}

// NewHandler creates a new handler instance.
func NewHandler(store Store, defaultPageSize, maxPageSize int) *Handler {
	if maxPageSize <= 0 {
		maxPageSize = defaultPageSize
	}
	return &Handler{store: store, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing JSON response body to client")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeStoreError maps repository errors to status codes. Anything unknown
// is logged and reported as a bare 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "already exists")
	case errors.Is(err, storage.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, "status must be pending, accepted or rejected")
	case errors.Is(err, storage.ErrAnimalUnavailable):
		writeError(w, r, http.StatusConflict, "animal is not available for adoption")
	case errors.Is(err, context.Canceled):
		hlog.FromRequest(r).Debug().Err(err).Msg("Request cancelled by client")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Repository error")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		hlog.FromRequest(r).Warn().Str("id", raw).Msg("Invalid id in path")
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || (max > 0 && v > max) {
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Invalid request body")
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func timePtr(t time.Time, valid bool) *time.Time {
	if !valid {
		return nil
	}
	return &t
}
