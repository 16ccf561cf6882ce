package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/domain/reminder"
	"github.com/ehr/carenotify/internal/domain/vitals"
	"github.com/ehr/carenotify/internal/platform/telemetry"
)

// Pusher delivers a message to a user's live channel, if one is bound. It
// reports whether the message was handed to an open channel.
type Pusher interface {
	Push(userID string, msg interface{}) bool
}

const (
	dateLayout = "January 2, 2006"
	timeLayout = "03:04 PM"
)

// Service is the single path by which notifications are created: every flow
// persists first and then attempts a best-effort push.
type Service struct {
	repo    Repository
	pusher  Pusher
	dir     directory.Directory
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(repo Repository, pusher Pusher, dir directory.Directory, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:    repo,
		pusher:  pusher,
		dir:     dir,
		logger:  logger.With().Str("component", "notification").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// CreateAndDispatch persists n and then pushes it to the recipient's live
// channel. A persistence failure is returned wrapped in ErrPersistence and
// nothing is pushed. A missing or closed channel is not an error.
func (s *Service) CreateAndDispatch(ctx context.Context, n *Notification) (*Notification, error) {
	if n.RecipientUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: recipient_user_id is required", ErrInvalidNotification)
	}
	if strings.TrimSpace(n.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidNotification)
	}
	if strings.TrimSpace(n.Category) == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidNotification)
	}
	n.IsRead = false
	n.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.metrics.NotificationCreated(n.Category)

	delivered := false
	if s.pusher != nil {
		delivered = s.pusher.Push(n.RecipientUserID.String(), n.PushMessage())
	}
	s.metrics.Push(delivered)
	s.logger.Debug().
		Str("notification_id", n.ID.String()).
		Str("category", n.Category).
		Bool("pushed", delivered).
		Msg("notification dispatched")
	return n, nil
}

// DispatchVitalsCheck evaluates signs and dispatches one notification per
// alert to the patient's user. When nothing crosses a threshold no lookup is
// made. Per-alert failures are joined; the remaining alerts are still sent.
func (s *Service) DispatchVitalsCheck(ctx context.Context, patientID uuid.UUID, signs vitals.Signs) ([]vitals.Alert, error) {
	alerts := vitals.Evaluate(signs)
	if len(alerts) == 0 {
		return nil, nil
	}

	userID, err := s.dir.PatientUserID(ctx, patientID)
	if err != nil {
		return alerts, lookupError(err)
	}

	var errs []error
	for _, a := range alerts {
		n := &Notification{
			RecipientUserID: userID,
			Title:           alertTitle(a.Type),
			Message:         a.Message,
			Category:        string(a.Type),
			Payload:         VitalsPayload{VitalSigns: signs},
		}
		if _, err := s.CreateAndDispatch(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s alert: %w", a.Type, err))
		}
	}
	return alerts, errors.Join(errs...)
}

func alertTitle(t vitals.AlertType) string {
	switch t {
	case vitals.AlertHighBloodPressure:
		return "High Blood Pressure Alert"
	case vitals.AlertLowBloodPressure:
		return "Low Blood Pressure Alert"
	default:
		return "Vital Signs Alert"
	}
}

// lookupError marks a not-found on the triggering entity as primary.
func lookupError(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return primary(err)
	}
	return err
}

func (s *Service) DispatchPrescriptionCreated(ctx context.Context, prescriptionID uuid.UUID) (*Notification, error) {
	p, err := s.dir.GetPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, lookupError(err)
	}
	userID, err := s.dir.PatientUserID(ctx, p.PatientID)
	if err != nil {
		return nil, err
	}

	prescriber := "Your doctor"
	if p.DoctorID != nil {
		name, err := s.dir.DoctorName(ctx, *p.DoctorID)
		if err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", p.DoctorID.String()).Msg("doctor name lookup failed")
		}
		if v, ok := name.Get(); ok {
			prescriber = "Dr. " + v
		}
	}

	return s.CreateAndDispatch(ctx, &Notification{
		RecipientUserID: userID,
		Title:           "New Prescription",
		Message:         fmt.Sprintf("%s has issued you a new prescription.", prescriber),
		Category:        CategoryPrescription,
		Payload:         PrescriptionPayload{PrescriptionID: p.ID, DoctorID: p.DoctorID},
	})
}

func (s *Service) DispatchAppointmentCreated(ctx context.Context, appointmentID uuid.UUID) (*Notification, error) {
	a, err := s.dir.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, lookupError(err)
	}
	userID, err := s.dir.DoctorUserID(ctx, a.DoctorID)
	if err != nil {
		return nil, err
	}
	name, err := s.dir.PatientName(ctx, a.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", a.PatientID.String()).Msg("patient name lookup failed")
	}

	return s.CreateAndDispatch(ctx, &Notification{
		RecipientUserID: userID,
		Title:           "New Appointment",
		Message: fmt.Sprintf("%s has booked an appointment with you on %s at %s.",
			name.OrElse("A patient"), a.ScheduledAt.Format(dateLayout), a.ScheduledAt.Format(timeLayout)),
		Category: CategoryAppointment,
		Payload:  AppointmentPayload{AppointmentID: a.ID, Status: a.Status},
	})
}

func (s *Service) DispatchAppointmentStatusChanged(ctx context.Context, appointmentID uuid.UUID, status string) (*Notification, error) {
	a, err := s.dir.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, lookupError(err)
	}
	userID, err := s.dir.PatientUserID(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = a.Status
	}

	return s.CreateAndDispatch(ctx, &Notification{
		RecipientUserID: userID,
		Title:           "Appointment Update",
		Message:         statusMessage(status, a.ScheduledAt),
		Category:        CategoryAppointment,
		Payload:         AppointmentPayload{AppointmentID: a.ID, Status: status},
	})
}

func statusMessage(status string, at time.Time) string {
	when := fmt.Sprintf("%s at %s", at.Format(dateLayout), at.Format(timeLayout))
	switch status {
	case "confirmed", "scheduled":
		return fmt.Sprintf("Your appointment on %s has been confirmed.", when)
	case "cancelled", "canceled":
		return fmt.Sprintf("Your appointment on %s has been cancelled.", when)
	case "completed":
		return fmt.Sprintf("Your appointment on %s has been marked as completed.", when)
	case "rescheduled":
		return fmt.Sprintf("Your appointment has been rescheduled to %s.", when)
	case "no_show", "no-show":
		return fmt.Sprintf("You were marked as a no-show for your appointment on %s.", when)
	default:
		return fmt.Sprintf("Your appointment on %s is now %s.", when, strings.ReplaceAll(status, "_", " "))
	}
}

// DispatchMedicationReminder sends the in-app reminder for one due slot of a
// schedule to the patient's user.
func (s *Service) DispatchMedicationReminder(ctx context.Context, sch *reminder.Schedule, slot reminder.Slot) (*Notification, error) {
	userID, err := s.dir.PatientUserID(ctx, sch.PatientID)
	if err != nil {
		return nil, err
	}
	return s.CreateAndDispatch(ctx, &Notification{
		RecipientUserID: userID,
		Title:           "Medication Reminder",
		Message:         ReminderMessage(sch, slot),
		Category:        CategoryMedicationReminder,
		Payload: ReminderPayload{
			ScheduleID:     sch.ID,
			MedicationName: sch.MedicationName,
			Dosage:         sch.Dosage,
			Time:           slot.Label(),
		},
	})
}

// ReminderMessage renders e.g. "Time to take Lisinopril (10mg) at 08:00 AM
// everyday, starting March 1, 2026."
func ReminderMessage(sch *reminder.Schedule, slot reminder.Slot) string {
	med := sch.MedicationName
	if d := strings.TrimSpace(sch.Dosage); d != "" {
		med = fmt.Sprintf("%s (%s)", med, d)
	}
	days := reminder.DaysLabel(sch)
	if days != "everyday" {
		days = "on " + days
	}
	return fmt.Sprintf("Time to take %s at %s %s, %s.", med, slot.Label(), days, reminder.DateRangeLabel(sch))
}

// -- Read side --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification read. Marking an already-read
// notification succeeds. When userID is non-nil it must be the recipient.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*Notification, error) {
	if userID != nil {
		n, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if n.RecipientUserID != *userID {
			return nil, ErrNotRecipient
		}
		if n.IsRead {
			return n, nil
		}
	}
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
