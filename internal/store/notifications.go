package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// CreateNotification queues a notification for a user.
func CreateNotification(ctx context.Context, q Querier, n model.Notification) (int64, error) {
	var itemID sql.NullInt64
	if n.ItemID > 0 {
		itemID = sql.NullInt64{Int64: n.ItemID, Valid: true}
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, item_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Title, n.Message, itemID, n.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("creating notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting notification id: %w", err)
	}
	return id, nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, q Querier, userID int64, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	query := `SELECT id, user_id, type, title, message, item_id, is_read, created_at
	          FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY id DESC`
	query, args = paginate(query, args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		var itemID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &itemID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.ItemID = itemID.Int64
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of userID's notifications as read.
// Returns model.ErrNotFound if userID has no such notification.
func MarkNotificationRead(ctx context.Context, q Querier, userID, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: notification %d", model.ErrNotFound, id))
}

// CountUnreadNotifications returns how many of userID's notifications are unread.
func CountUnreadNotifications(ctx context.Context, q Querier, userID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkAllNotificationsRead marks every unread notification of userID as read
// and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, q Querier, userID int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting marked notifications: %w", err)
	}
	return n, nil
}
