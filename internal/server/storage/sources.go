package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"adoptik/petfeed/internal/models"
)

// MaxSourceFailures is how many consecutive fetch failures deactivate a source.
const MaxSourceFailures = 10

// InsertSource stores a new video source. A URL that is already known
// yields ErrDuplicate.
func (r *Repository) InsertSource(ctx context.Context, s *models.VideoSource) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO video_sources (url, animal_id, comments, status, created_at, updated_at)
		VALUES (:url, :animal_id, :comments, :status, :created_at, :updated_at)`, s)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert source: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// ActiveSources returns the sources to fetch, least recently retrieved first.
func (r *Repository) ActiveSources(ctx context.Context) ([]models.VideoSource, error) {
	sources := []models.VideoSource{}
	err := r.db.SelectContext(ctx, &sources, `
		SELECT * FROM video_sources
		WHERE status = ?
		ORDER BY last_retrieved_at IS NOT NULL, last_retrieved_at ASC, id ASC`, models.SourceActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	return sources, nil
}

// RecordSourceSuccess resets the failure accounting of a source.
func (r *Repository) RecordSourceSuccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_sources
		SET status = ?, failures_count = 0, last_error = NULL, last_retrieved_at = ?, updated_at = ?
		WHERE id = ?`, models.SourceActive, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source %d: %w", id, err)
	}
	return nil
}

// RecordSourceFailure counts a failed fetch and deactivates the source once
// it has failed more than MaxSourceFailures times in a row.
func (r *Repository) RecordSourceFailure(ctx context.Context, s *models.VideoSource, fetchErr error, at time.Time) error {
	s.FailuresCount++
	s.LastError = sql.NullString{String: fetchErr.Error(), Valid: true}
	if s.FailuresCount > MaxSourceFailures {
		s.Status = models.SourceInactive
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_sources
		SET status = ?, failures_count = ?, last_error = ?, last_retrieved_at = ?, updated_at = ?
		WHERE id = ?`, s.Status, s.FailuresCount, s.LastError, at.UTC(), at.UTC(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update source %d: %w", s.ID, err)
	}
	return nil
}
