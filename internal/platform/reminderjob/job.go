// Package reminderjob runs the periodic medication reminder sweep. Each sweep
// finds the schedules due in the current hour, dispatches one in-app
// notification per due schedule and then attempts a best-effort e-mail.
package reminderjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/domain/notification"
	"github.com/ehr/carenotify/internal/domain/reminder"
	"github.com/ehr/carenotify/internal/platform/email"
	"github.com/ehr/carenotify/internal/platform/telemetry"
)

type ScheduleSource interface {
	FindActive(ctx context.Context, filter reminder.ActiveFilter) ([]*reminder.Schedule, error)
}

type ReminderDispatcher interface {
	DispatchMedicationReminder(ctx context.Context, sch *reminder.Schedule, slot reminder.Slot) (*notification.Notification, error)
}

type ContactLookup interface {
	PatientContact(ctx context.Context, patientID uuid.UUID) (directory.Contact, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	At            time.Time `json:"at"`
	Examined      int       `json:"examined"`
	Due           int       `json:"due"`
	Processed     int       `json:"processed"`
	Duplicates    int       `json:"duplicates"`
	Failed        int       `json:"failed"`
	EmailsSent    int       `json:"emails_sent"`
	EmailsFailed  int       `json:"emails_failed"`
	EmailsSkipped int       `json:"emails_skipped"`
}

// Job holds the sweep's collaborators.
type Job struct {
	schedules  ScheduleSource
	dispatcher ReminderDispatcher
	contacts   ContactLookup
	mailer     email.Provider
	templates  *email.TemplateEngine
	ledger     Ledger
	metrics    *telemetry.Metrics
	loc        *time.Location
	logger     zerolog.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithLedger replaces the default in-memory ledger.
func WithLedger(l Ledger) Option {
	return func(j *Job) { j.ledger = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// WithLocation sets the zone in which slot hours and dates are evaluated.
func WithLocation(loc *time.Location) Option {
	return func(j *Job) {
		if loc != nil {
			j.loc = loc
		}
	}
}

func WithTemplates(t *email.TemplateEngine) Option {
	return func(j *Job) { j.templates = t }
}

// NewJob creates a Job. A nil mailer disables e-mail.
func NewJob(schedules ScheduleSource, dispatcher ReminderDispatcher, contacts ContactLookup, mailer email.Provider, logger zerolog.Logger, opts ...Option) *Job {
	if mailer == nil {
		mailer = email.Disabled()
	}
	j := &Job{
		schedules:  schedules,
		dispatcher: dispatcher,
		contacts:   contacts,
		mailer:     mailer,
		templates:  email.NewTemplateEngine(),
		ledger:     NewMemoryLedger(DefaultClaimTTL),
		loc:        time.UTC,
		logger:     logger.With().Str("component", "reminderjob").Logger(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs one sweep and returns the number of reminders dispatched.
func (j *Job) Run(ctx context.Context, now time.Time) (int, error) {
	res, err := j.Sweep(ctx, now)
	if err != nil {
		return 0, err
	}
	return res.Processed, nil
}

// Sweep dispatches every schedule due at now. Only a failure to fetch the
// active schedules fails the sweep; per-schedule failures are counted and
// logged.
func (j *Job) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	started := time.Now()
	now = now.In(j.loc)

	asOf := now
	schedules, err := j.schedules.FindActive(ctx, reminder.ActiveFilter{AsOf: &asOf})
	if err != nil {
		j.logger.Error().Err(err).Msg("reminder sweep aborted")
		return nil, fmt.Errorf("fetching active schedules: %w", err)
	}

	res := &SweepResult{At: now, Examined: len(schedules)}
	for _, sch := range schedules {
		slot, ok := reminder.DueSlot(sch, now)
		if !ok {
			continue
		}
		res.Due++

		key := OccurrenceKey(sch.ID, now, slot)
		claimed, err := j.ledger.Claim(ctx, key)
		if err != nil {
			j.logger.Warn().Err(err).Str("key", key).Msg("dispatch ledger unavailable, proceeding")
			claimed = true
		}
		if !claimed {
			res.Duplicates++
			continue
		}

		if _, err := j.dispatcher.DispatchMedicationReminder(ctx, sch, slot); err != nil {
			j.logger.Error().Err(err).
				Str("schedule_id", sch.ID.String()).
				Str("patient_id", sch.PatientID.String()).
				Msg("failed to dispatch medication reminder")
			res.Failed++
			if err := j.ledger.Release(ctx, key); err != nil {
				j.logger.Warn().Err(err).Str("key", key).Msg("failed to release dispatch claim")
			}
			continue
		}
		res.Processed++
		j.sendEmail(ctx, sch, slot, res)
	}

	j.metrics.ObserveSweep(time.Since(started), res.Processed)
	j.logger.Info().
		Int("examined", res.Examined).
		Int("due", res.Due).
		Int("processed", res.Processed).
		Int("duplicates", res.Duplicates).
		Int("failed", res.Failed).
		Int("emails_sent", res.EmailsSent).
		Dur("elapsed", time.Since(started)).
		Msg("reminder sweep complete")
	return res, nil
}

func (j *Job) sendEmail(ctx context.Context, sch *reminder.Schedule, slot reminder.Slot, res *SweepResult) {
	log := j.logger.With().Str("schedule_id", sch.ID.String()).Logger()

	contact, err := j.contacts.PatientContact(ctx, sch.PatientID)
	if err != nil {
		log.Warn().Err(err).Msg("reminder email skipped: contact lookup failed")
		j.skipEmail(res)
		return
	}
	if contact.Email == "" {
		j.skipEmail(res)
		return
	}

	subject, body, err := j.templates.Render(email.TemplateMedicationReminder, map[string]string{
		"patient_name": contact.Name,
		"medication":   sch.MedicationName,
		"dosage":       sch.Dosage,
		"time":         slot.Label(),
		"message":      notification.ReminderMessage(sch, slot),
		"instructions": sch.Instructions,
	})
	if err != nil {
		log.Error().Err(err).Msg("reminder email skipped: template")
		j.skipEmail(res)
		return
	}

	err = j.mailer.Send(ctx, contact.Email, subject, body)
	switch {
	case err == nil:
		res.EmailsSent++
		j.metrics.Email(telemetry.ResultSent)
	case errors.Is(err, email.ErrNotConfigured):
		log.Warn().Msg("reminder email skipped: email provider not configured")
		j.skipEmail(res)
	default:
		log.Warn().Err(err).Msg("reminder email failed")
		res.EmailsFailed++
		j.metrics.Email(telemetry.ResultFailed)
	}
}

func (j *Job) skipEmail(res *SweepResult) {
	res.EmailsSkipped++
	j.metrics.Email(telemetry.ResultSkipped)
}
