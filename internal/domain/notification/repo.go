package notification

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists notifications. Records are never deleted.
type Repository interface {
	// Create assigns the ID and stores n.
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkRead sets is_read and returns the updated record, or
	// ErrNotificationNotFound.
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
	// MarkAllRead marks every unread notification of the user read and
	// returns how many changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}
