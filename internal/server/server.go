package server

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/csv"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"adoptik/petfeed/internal/database"
	"adoptik/petfeed/internal/server/api"
	"adoptik/petfeed/internal/server/storage"
)

// Options configures the HTTP API.
type Options struct {
	APIKey          string
	DefaultPageSize int
	MaxPageSize     int
}

// adminOnly checks the X-API-Key header against apiKey. Without a
// configured key the admin surface is closed.
func adminOnly(apiKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			http.Error(w, "Admin API disabled", http.StatusForbidden)
			return
		}

		reqAPIKey := r.Header.Get("X-API-Key")
		if reqAPIKey == "" {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(reqAPIKey), []byte(apiKey)) != 1 {
			hlog.FromRequest(r).Warn().Msg("Invalid API key")
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// NewRouter builds the routed, logged handler for the API.
func NewRouter(db *database.DB, logger zerolog.Logger, opts Options) http.Handler {
	repo := storage.NewRepository(db)
	h := api.NewHandler(repo, opts.DefaultPageSize, opts.MaxPageSize)
	admin := func(next http.HandlerFunc) http.HandlerFunc { return adminOnly(opts.APIKey, next) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler(db))

	mux.HandleFunc("GET /v1/videos", h.GetVideos)
	mux.HandleFunc("POST /v1/videos/{id}/like", h.React(storage.CounterLikes))
	mux.HandleFunc("POST /v1/videos/{id}/share", h.React(storage.CounterShares))
	mux.HandleFunc("POST /v1/videos/{id}/view", h.React(storage.CounterViews))

	mux.HandleFunc("GET /v1/animals", h.ListAnimals)
	mux.HandleFunc("GET /v1/animals/{id}", h.GetAnimal)
	mux.HandleFunc("PATCH /v1/animals/{id}/description", admin(h.UpdateDescription))
	mux.HandleFunc("POST /v1/animals/{id}/videos", admin(h.AddVideo))

	mux.HandleFunc("POST /v1/adoption-requests", h.CreateAdoptionRequest)
	mux.HandleFunc("GET /v1/adoption-requests", admin(h.ListAdoptionRequests))
	mux.HandleFunc("PATCH /v1/adoption-requests/{id}/status", admin(h.UpdateAdoptionStatus))

	mux.HandleFunc("GET /v1/notifications", h.ListNotifications)
	mux.HandleFunc("POST /v1/notifications/{id}/read", h.MarkNotificationRead)

	mux.HandleFunc("GET /v1/sources", admin(exportSourcesHandler(db)))

	// Set up middleware chain for logging and request tracking
	handler := hlog.NewHandler(logger)(mux)
	handler = hlog.MethodHandler("method")(handler)
	handler = hlog.URLHandler("url")(handler)
	handler = hlog.RemoteAddrHandler("remote_addr")(handler)
	handler = hlog.UserAgentHandler("user_agent")(handler)
	handler = hlog.RequestIDHandler("req_id", "Request-Id")(handler)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(handler)

	if opts.APIKey == "" {
		logger.Warn().Msg("No API key configured, admin endpoints are disabled")
	}
	return handler
}

// RunServer starts the HTTP server and blocks until SIGINT/SIGTERM, then
// shuts it down gracefully.
func RunServer(db *database.DB, listenAddr string, logger zerolog.Logger, opts Options) error {
	logger = logger.With().Str("service", "petfeed-api").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           NewRouter(db, logger, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErr:
		return err

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler answers 200 OK while the database is reachable.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed to reach database")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}

// exportSourcesHandler streams every video source as CSV in the format the
// importer reads back.
func exportSourcesHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		rows, err := db.QueryContext(r.Context(), `
			SELECT url, animal_id, comments, status
			FROM video_sources
			ORDER BY id ASC
		`)
		if err != nil {
			log.Error().Err(err).Msg("Failed to query sources")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=sources.csv")

		csvWriter := csv.NewWriter(w)
		if err := csvWriter.Write([]string{"url", "animal_id", "comments", "status"}); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV header")
			return
		}

		var count int
		for rows.Next() {
			var url, status string
			var animalID sql.NullInt64
			var comments sql.NullString
			if err := rows.Scan(&url, &animalID, &comments, &status); err != nil {
				log.Error().Err(err).Msg("Failed to scan source row")
				continue
			}

			var animal string
			if animalID.Valid {
				animal = strconv.FormatInt(animalID.Int64, 10)
			}
			if err := csvWriter.Write([]string{url, animal, comments.String, status}); err != nil {
				log.Error().Err(err).Msg("Failed to write CSV record")
				return
			}
			count++
		}
		if err := rows.Err(); err != nil {
			log.Error().Err(err).Msg("Error iterating source rows")
		}

		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Error().Err(err).Msg("Error flushing CSV data")
			return
		}
		log.Debug().Int("source_count", count).Msg("Exported sources as CSV")
	}
}
