package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"adoptik/petfeed/internal/models"
)

// ListAnimals returns animals ordered by id, optionally filtered by status.
func (r *Repository) ListAnimals(ctx context.Context, status string) ([]models.Animal, error) {
	animals := []models.Animal{}
	var err error
	if status == "" {
		err = r.db.SelectContext(ctx, &animals, `SELECT * FROM animals ORDER BY id`)
	} else {
		err = r.db.SelectContext(ctx, &animals, `SELECT * FROM animals WHERE status = ? ORDER BY id`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list animals: %w", err)
	}
	return animals, nil
}

// GetAnimal returns one animal.
func (r *Repository) GetAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	var a models.Animal
	err := r.db.GetContext(ctx, &a, `SELECT * FROM animals WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load animal %d: %w", id, err)
	}
	return &a, nil
}

// InsertAnimal stores a new animal and sets its ID.
func (r *Repository) InsertAnimal(ctx context.Context, a *models.Animal) error {
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = models.AnimalAvailable
	}
	a.CreatedAt, a.UpdatedAt = now, now

	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO animals (name, age, species, location, description, image_url, status, created_at, updated_at)
		VALUES (:name, :age, :species, :location, :description, :image_url, :status, :created_at, :updated_at)`, a)
	if err != nil {
		return fmt.Errorf("failed to insert animal: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// UpdateAnimalDescription replaces the description of an animal.
func (r *Repository) UpdateAnimalDescription(ctx context.Context, id int64, description string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE animals SET description = ?, updated_at = ? WHERE id = ?`,
		sql.NullString{String: description, Valid: description != ""}, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update animal %d: %w", id, err)
	}
	return notFoundIfNone(res)
}
