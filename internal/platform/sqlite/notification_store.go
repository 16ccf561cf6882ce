package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/domain/notification"
)

type notificationStore struct{ db dbtx }

// Notifications returns the notification repository.
func (s *Store) Notifications() notification.Repository {
	return &notificationStore{db: s.db}
}

type notificationRow struct {
	ID              uuid.UUID `db:"id"`
	RecipientUserID uuid.UUID `db:"recipient_user_id"`
	Title           string    `db:"title"`
	Message         string    `db:"message"`
	Category        string    `db:"category"`
	IsRead          bool      `db:"is_read"`
	CreatedAt       string    `db:"created_at"`
	Payload         []byte    `db:"payload"`
}

func (r notificationRow) toNotification() (*notification.Notification, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("notification %s created_at: %w", r.ID, err)
	}
	payload, err := notification.DecodePayload(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("notification %s payload: %w", r.ID, err)
	}
	return &notification.Notification{
		ID:              r.ID,
		RecipientUserID: r.RecipientUserID,
		Title:           r.Title,
		Message:         r.Message,
		Category:        r.Category,
		IsRead:          r.IsRead,
		CreatedAt:       created,
		Payload:         payload,
	}, nil
}

const notificationCols = `id, recipient_user_id, title, message, category, is_read, created_at, payload`

func (r *notificationStore) Create(ctx context.Context, n *notification.Notification) error {
	payload, err := notification.EncodePayload(n.Payload)
	if err != nil {
		return err
	}
	var stored interface{}
	if payload != nil {
		stored = string(payload)
	}
	n.ID = uuid.New()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notification (id, recipient_user_id, title, message, category, is_read, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.RecipientUserID.String(), n.Title, n.Message, n.Category, n.IsRead,
		formatTime(n.CreatedAt), stored)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationStore) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var row notificationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+notificationCols+` FROM notification WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notification.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return row.toNotification()
}

func (r *notificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*notification.Notification, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM notification WHERE recipient_user_id = ?`, userID.String()); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var rows []notificationRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+notificationCols+` FROM notification
		WHERE recipient_user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID.String(), limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	items := make([]*notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNotification()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, nil
}

func (r *notificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notification WHERE recipient_user_id = ? AND is_read = 0`, userID.String()); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (r *notificationStore) MarkRead(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notification SET is_read = 1 WHERE id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notification.ErrNotificationNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *notificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notification SET is_read = 1 WHERE recipient_user_id = ? AND is_read = 0`, userID.String())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(n), nil
}
