package reminder

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrScheduleNotFound = errors.New("reminder schedule not found")

// Repository persists medication reminder schedules. Schedules are
// deactivated, never deleted.
type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Schedule, int, error)
	FindActive(ctx context.Context, filter ActiveFilter) ([]*Schedule, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
