package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"adoptik/petfeed/internal/models"
)

// CreateAdoptionRequest stores a validated request as pending. The animal
// must exist and still be available.
func (r *Repository) CreateAdoptionRequest(ctx context.Context, req *models.AdoptionRequest) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, `SELECT status FROM animals WHERE id = ?`, req.AnimalID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load animal %d: %w", req.AnimalID, err)
		}
		if status != models.AnimalAvailable {
			return ErrAnimalUnavailable
		}

		now := time.Now().UTC()
		req.Reference = uuid.NewString()
		req.Status = models.RequestPending
		req.CreatedAt, req.UpdatedAt = now, now

		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO adoption_requests
				(reference, animal_id, user_id, full_name, age, curp, address, phone, email,
				 family_size, housing, house_type, status, created_at, updated_at)
			VALUES
				(:reference, :animal_id, :user_id, :full_name, :age, :curp, :address, :phone, :email,
				 :family_size, :housing, :house_type, :status, :created_at, :updated_at)`, req)
		if err != nil {
			return fmt.Errorf("failed to insert adoption request: %w", err)
		}
		req.ID, err = res.LastInsertId()
		return err
	})
}

// GetAdoptionRequest returns one request.
func (r *Repository) GetAdoptionRequest(ctx context.Context, id int64) (*models.AdoptionRequest, error) {
	var req models.AdoptionRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM adoption_requests WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load adoption request %d: %w", id, err)
	}
	return &req, nil
}

// ListAdoptionRequests returns up to limit requests, newest first, with an id
// below beforeID when it is positive. An empty status lists every status.
func (r *Repository) ListAdoptionRequests(ctx context.Context, status string, limit int, beforeID int64) ([]models.AdoptionRequest, error) {
	if status != "" && !models.ValidRequestStatus(status) {
		return nil, ErrInvalidStatus
	}

	query := `SELECT * FROM adoption_requests WHERE 1 = 1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	reqs := []models.AdoptionRequest{}
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list adoption requests: %w", err)
	}
	return reqs, nil
}

// UpdateAdoptionStatus moves a request to status. Accepting a request marks
// the animal adopted and rejects every other pending request for it; moving
// an accepted request back makes the animal available again. Applicants
// with a user id are notified of every decision. All of it happens in one
// transaction.
func (r *Repository) UpdateAdoptionStatus(ctx context.Context, id int64, status string) (*models.AdoptionRequest, error) {
	if !models.ValidRequestStatus(status) {
		return nil, ErrInvalidStatus
	}

	var updated models.AdoptionRequest
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var req models.AdoptionRequest
		err := tx.GetContext(ctx, &req, `SELECT * FROM adoption_requests WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load adoption request %d: %w", id, err)
		}

		var animal models.Animal
		if err := tx.GetContext(ctx, &animal, `SELECT * FROM animals WHERE id = ?`, req.AnimalID); err != nil {
			return fmt.Errorf("failed to load animal %d: %w", req.AnimalID, err)
		}
		name := animal.Name.String
		if name == "" {
			name = fmt.Sprintf("animal #%d", animal.ID)
		}

		if req.Status == status {
			updated = req
			return nil
		}
		if status == models.RequestAccepted && !animal.Available() {
			return ErrAnimalUnavailable
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE adoption_requests SET status = ?, updated_at = ? WHERE id = ?`, status, now, id); err != nil {
			return fmt.Errorf("failed to update adoption request %d: %w", id, err)
		}

		switch {
		case status == models.RequestAccepted:
			if _, err := tx.ExecContext(ctx,
				`UPDATE animals SET status = ?, adopted_at = ?, updated_at = ? WHERE id = ?`,
				models.AnimalAdopted, now, now, animal.ID); err != nil {
				return fmt.Errorf("failed to mark animal %d adopted: %w", animal.ID, err)
			}

			var others []models.AdoptionRequest
			if err := tx.SelectContext(ctx, &others,
				`SELECT * FROM adoption_requests WHERE animal_id = ? AND id <> ? AND status = ?`,
				animal.ID, id, models.RequestPending); err != nil {
				return fmt.Errorf("failed to load competing requests: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE adoption_requests SET status = ?, updated_at = ? WHERE animal_id = ? AND id <> ? AND status = ?`,
				models.RequestRejected, now, animal.ID, id, models.RequestPending); err != nil {
				return fmt.Errorf("failed to reject competing requests: %w", err)
			}
			for _, other := range others {
				msg := fmt.Sprintf("Your adoption request for %s was not accepted: %s has been adopted.", name, name)
				if err := notifyApplicant(ctx, tx, other, msg, now); err != nil {
					return err
				}
			}
			if err := notifyApplicant(ctx, tx, req, fmt.Sprintf("Your adoption request for %s was accepted.", name), now); err != nil {
				return err
			}

		case req.Status == models.RequestAccepted:
			if _, err := tx.ExecContext(ctx,
				`UPDATE animals SET status = ?, adopted_at = NULL, updated_at = ? WHERE id = ?`,
				models.AnimalAvailable, now, animal.ID); err != nil {
				return fmt.Errorf("failed to release animal %d: %w", animal.ID, err)
			}
		}

		if status == models.RequestRejected {
			if err := notifyApplicant(ctx, tx, req, fmt.Sprintf("Your adoption request for %s was rejected.", name), now); err != nil {
				return err
			}
		}

		updated = req
		updated.Status = status
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func notifyApplicant(ctx context.Context, tx *sqlx.Tx, req models.AdoptionRequest, message string, now time.Time) error {
	if !req.UserID.Valid || req.UserID.String == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (user_id, request_id, message, created_at) VALUES (?, ?, ?, ?)`,
		req.UserID.String, req.ID, message, now)
	if err != nil {
		return fmt.Errorf("failed to notify user %s: %w", req.UserID.String, err)
	}
	return nil
}
