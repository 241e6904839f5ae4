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

// ImportAnimals reads animals from a CSV with the columns name, age,
// species, location, description, image_url, status and video_url. Only
// name is required. A video_url registers a first video for the animal.
func (i *Importer) ImportAnimals(ctx context.Context, location string) (*Summary, error) {
	log.Info().Str("csv", location).Msg("Starting animal import")

	rc, err := i.open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer rc.Close()

	t, err := newTable(rc, "name")
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
			log.Warn().Err(err).Int("line", t.line).Msg("Error reading CSV line")
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", t.line, err))
			continue
		}
		sum.Total++

		if err := i.importAnimal(ctx, t, record); err != nil {
			log.Warn().Err(err).Int("line", t.line).Msg("Skipping animal")
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: %v", t.line, err))
			continue
		}
		sum.Imported++
	}

	log.Info().
		Int("total", sum.Total).
		Int("success", sum.Imported).
		Int("errors", len(sum.Errors)).
		Msg("Animal import summary")
	return sum, nil
}

func (i *Importer) importAnimal(ctx context.Context, t *table, record []string) error {
	a := &models.Animal{
		Name:        t.value(record, "name"),
		Species:     t.value(record, "species"),
		Location:    t.value(record, "location"),
		Description: t.value(record, "description"),
		ImageURL:    t.value(record, "image_url"),
		Status:      models.AnimalAvailable,
	}
	if !a.Name.Valid {
		return errors.New("empty name")
	}
	if age := t.value(record, "age"); age.Valid {
		n, err := strconv.ParseInt(age.String, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid age %q", age.String)
		}
		a.Age = sql.NullInt64{Int64: n, Valid: true}
	}
	if status := t.value(record, "status"); status.Valid {
		if status.String != models.AnimalAvailable && status.String != models.AnimalAdopted {
			return fmt.Errorf("invalid status %q", status.String)
		}
		a.Status = status.String
	}

	if err := i.repo.InsertAnimal(ctx, a); err != nil {
		return err
	}
	log.Debug().Int("line", t.line).Int64("animal_id", a.ID).Str("name", a.Name.String).Msg("Animal inserted")

	if url := t.value(record, "video_url"); url.Valid {
		if _, err := i.repo.AddVideo(ctx, a.ID, url.String); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				log.Warn().Int("line", t.line).Str("url", url.String).Msg("Duplicate video URL")
				return nil
			}
			return fmt.Errorf("animal %d stored but video failed: %w", a.ID, err)
		}
	}
	return nil
}
