package storage

import (
	"context"
	"fmt"

	"adoptik/petfeed/internal/models"
)

// ListNotifications returns the newest notifications of a user.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	out := []models.Notification{}
	if err := r.db.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead flags one of the user's notifications as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	return notFoundIfNone(res)
}
