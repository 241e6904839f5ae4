package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/models"
	"adoptik/petfeed/internal/server/storage"
)

type animalResponse struct {
	feed.AnimalInfo
	Status    string     `json:"status"`
	AdoptedAt *time.Time `json:"adopted_at,omitempty"`
}

func toAnimalResponse(a *models.Animal) animalResponse {
	return animalResponse{
		AnimalInfo: storage.AnimalInfo(a),
		Status:     a.Status,
		AdoptedAt:  timePtr(a.AdoptedAt.Time, a.AdoptedAt.Valid),
	}
}

// ListAnimals handles GET /v1/animals?status=available|adopted.
func (h *Handler) ListAnimals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != models.AnimalAvailable && status != models.AnimalAdopted {
		writeError(w, r, http.StatusBadRequest, "status must be available or adopted")
		return
	}

	animals, err := h.store.ListAnimals(r.Context(), status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]animalResponse, 0, len(animals))
	for i := range animals {
		out = append(out, toAnimalResponse(&animals[i]))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetAnimal handles GET /v1/animals/{id}.
func (h *Handler) GetAnimal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.store.GetAnimal(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAnimalResponse(a))
}

type descriptionRequest struct {
	Description string `json:"description"`
}

// UpdateDescription handles PATCH /v1/animals/{id}/description.
func (h *Handler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body descriptionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.store.UpdateAnimalDescription(r.Context(), id, strings.TrimSpace(body.Description)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int64("animal_id", id).Msg("Animal description updated")
	w.WriteHeader(http.StatusNoContent)
}
