package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog/log"

	"adoptik/petfeed/internal/models"
	"adoptik/petfeed/internal/server/storage"
)

// ImportSources reads shelter video feeds from a CSV with the columns url,
// animal_id, comments and status, the format GET /v1/sources exports.
func (i *Importer) ImportSources(ctx context.Context, location string) (*Summary, error) {
	log.Info().Str("csv", location).Msg("Starting source import")

	rc, err := i.open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer rc.Close()

	t, err := newTable(rc, "url")
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for {
		record, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", t.line, err))
			continue
		}
		sum.Total++

		src, err := sourceFromRecord(t, record)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", t.line, err))
			continue
		}

		logger := log.With().Int("line", t.line).Str("url", src.URL).Logger()
		if err := i.repo.InsertSource(ctx, src); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				logger.Warn().Msg("Duplicate URL")
				sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: duplicate URL: %s", t.line, src.URL))
			} else {
				logger.Error().Err(err).Msg("Failed to insert source")
				sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", t.line, err))
			}
			continue
		}
		sum.Imported++
		logger.Debug().Msg("Source inserted successfully")
	}

	log.Info().
		Int("total", sum.Total).
		Int("success", sum.Imported).
		Int("errors", len(sum.Errors)).
		Msg("Source import summary")
	return sum, nil
}

func sourceFromRecord(t *table, record []string) (*models.VideoSource, error) {
	url := t.value(record, "url")
	if !url.Valid {
		return nil, errors.New("empty URL")
	}
	src := models.NewVideoSource(url.String)
	src.Comments = t.value(record, "comments")
	if status := t.value(record, "status"); status.Valid {
		if status.String != models.SourceActive && status.String != models.SourceInactive {
			return nil, fmt.Errorf("invalid status %q", status.String)
		}
		src.Status = status.String
	}
	if animal := t.value(record, "animal_id"); animal.Valid {
		id, err := strconv.ParseInt(animal.String, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid animal_id %q", animal.String)
		}
		src.AnimalID = sql.NullInt64{Int64: id, Valid: true}
	}
	return src, nil
}
