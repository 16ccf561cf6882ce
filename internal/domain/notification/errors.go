package notification

import (
	"errors"
	"fmt"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("user is not the notification recipient")
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrPersistence          = errors.New("notification persistence failed")
	// ErrPrimaryNotFound marks a not-found on the entity the triggering
	// action was about (the prescription, the appointment, the patient whose
	// vitals were checked), as opposed to a secondary lookup.
	ErrPrimaryNotFound = errors.New("primary entity not found")
)

func primary(err error) error {
	return fmt.Errorf("%w: %w", ErrPrimaryNotFound, err)
}

// Degrade applies the dispatch degradation policy for a caller that has
// already completed its primary action: only a not-found on the primary
// entity is reported, every other dispatch failure is absorbed.
func Degrade(err error) error {
	if errors.Is(err, ErrPrimaryNotFound) {
		return err
	}
	return nil
}
