package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"adoptik/petfeed/internal/server/storage"
)

// GetVideos handles GET /v1/videos?page=N&limit=M. The response is a bare
// JSON array; an empty array marks the end of the feed.
func (h *Handler) GetVideos(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	page, ok := queryInt(r, "page", 1, 0)
	if !ok {
		log.Warn().Str("page", r.URL.Query().Get("page")).Msg("Invalid 'page' parameter value")
		writeError(w, r, http.StatusBadRequest, "invalid 'page' parameter: must be a positive integer")
		return
	}
	limit, ok := queryInt(r, "limit", h.defaultPageSize, h.maxPageSize)
	if !ok {
		log.Warn().Str("limit", r.URL.Query().Get("limit")).Msg("Invalid 'limit' parameter value")
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid 'limit' parameter: must be between 1 and %d", h.maxPageSize))
		return
	}

	items, err := h.store.VideoPage(r.Context(), page, limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	log.Debug().Int("page", page).Int("limit", limit).Int("items", len(items)).Msg("Videos page served")
	writeJSON(w, r, http.StatusOK, items)
}

// React returns a handler that increments counter for the video in the path.
func (h *Handler) React(counter storage.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := h.store.IncrementCounter(r.Context(), id, counter); err != nil {
			writeStoreError(w, r, err)
			return
		}
		hlog.FromRequest(r).Debug().Int64("video_id", id).Str("counter", string(counter)).Msg("Counter incremented")
		w.WriteHeader(http.StatusNoContent)
	}
}

type addVideoRequest struct {
	VideoURL string `json:"video_url"`
}

// AddVideo handles POST /v1/animals/{id}/videos.
func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body addVideoRequest
	if !decodeBody(w, r, &body) {
		return
	}
	body.VideoURL = strings.TrimSpace(body.VideoURL)
	if body.VideoURL == "" {
		writeError(w, r, http.StatusBadRequest, "video_url is required")
		return
	}

	v, err := h.store.AddVideo(r.Context(), id, body.VideoURL)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int64("animal_id", id).Int64("video_id", v.ID).Msg("Video registered")
	writeJSON(w, r, http.StatusCreated, map[string]any{"id": v.ID, "video_url": body.VideoURL, "animal_id": id})
}
