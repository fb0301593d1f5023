package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/model"
)

const notificationSelect = `
	SELECT n.id, n.title, n.message, n.type, n.priority, n.sender_id, n.recipient_id,
	       n.read, n.created_at, n.updated_at,
	       COALESCE(s.full_name, ''), COALESCE(s.email, ''), COALESCE(s.profile_pic, ''),
	       COALESCE(r.full_name, ''), COALESCE(r.email, ''), COALESCE(r.profile_pic, '')
	FROM notifications n
	LEFT JOIN users s ON s.id = n.sender_id
	LEFT JOIN users r ON r.id = n.recipient_id`

func scanNotification(row rowScanner, n *model.Notification) error {
	sender := &model.UserSummary{}
	recipient := &model.UserSummary{}
	if err := row.Scan(
		&n.ID, &n.Title, &n.Message, &n.Type, &n.Priority, &n.SenderID, &n.RecipientID,
		&n.Read, &n.CreatedAt, &n.UpdatedAt,
		&sender.FullName, &sender.Email, &sender.ProfilePic,
		&recipient.FullName, &recipient.Email, &recipient.ProfilePic,
	); err != nil {
		return err
	}
	sender.ID = n.SenderID
	recipient.ID = n.RecipientID
	n.Sender = sender
	n.Recipient = recipient
	return nil
}

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = xid.New().String()
	now := db.now()
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (id, title, message, type, priority, sender_id, recipient_id, read, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Message, n.Type, n.Priority, n.SenderID, n.RecipientID,
		n.Read, n.CreatedAt, n.UpdatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: creating notification: %w", err)
	}

	created, err := db.GetNotification(ctx, n.ID)
	if err != nil {
		return err
	}
	*n = *created
	return nil
}

func (db *DB) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	err := scanNotification(db.conn.QueryRowContext(ctx, notificationSelect+` WHERE n.id = ?`, id), &n)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Notification")
		}
		return nil, fmt.Errorf("sqlite: getting notification %s: %w", id, err)
	}
	return &n, nil
}

func (db *DB) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		notificationSelect+` WHERE n.recipient_id = ? ORDER BY n.created_at DESC, n.id DESC`,
		recipientID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications: %w", err)
	}
	defer rows.Close()

	list := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification row: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notifications: %w", err)
	}
	return list, nil
}

func (db *DB) SetNotificationRead(ctx context.Context, id string, read bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = ?, updated_at = ? WHERE id = ?`, read, db.now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating notification %s: %w", id, err)
	}
	return requireAffected(result, "Notification")
}

func (db *DB) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE recipient_id = ? AND read = 0`,
		db.now(), recipientID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

func (db *DB) DeleteNotification(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting notification %s: %w", id, err)
	}
	return requireAffected(result, "Notification")
}

func (db *DB) PruneReadNotifications(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = 1 AND created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}
