package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/domain/reminder"
)

type scheduleStore struct {
	db     dbtx
	logger zerolog.Logger
}

// Schedules returns the reminder schedule repository.
func (s *Store) Schedules() reminder.Repository {
	return &scheduleStore{db: s.db, logger: s.logger}
}

type scheduleRow struct {
	ID             uuid.UUID  `db:"id"`
	PatientID      uuid.UUID  `db:"patient_id"`
	PrescriptionID *uuid.UUID `db:"prescription_id"`
	MedicationName string     `db:"medication_name"`
	Dosage         string     `db:"dosage"`
	Frequency      string     `db:"frequency"`
	StartDate      string     `db:"start_date"`
	EndDate        *string    `db:"end_date"`
	TimeOfDay      stringList `db:"time_of_day"`
	DaysOfWeek     stringList `db:"days_of_week"`
	IsActive       bool       `db:"is_active"`
	Instructions   string     `db:"instructions"`
	CreatedAt      string     `db:"created_at"`
	UpdatedAt      string     `db:"updated_at"`
}

func (r scheduleRow) toSchedule() (*reminder.Schedule, error) {
	s := &reminder.Schedule{
		ID:             r.ID,
		PatientID:      r.PatientID,
		PrescriptionID: r.PrescriptionID,
		MedicationName: r.MedicationName,
		Dosage:         r.Dosage,
		Frequency:      reminder.Frequency(r.Frequency),
		TimeOfDay:      []string(r.TimeOfDay),
		DaysOfWeek:     []string(r.DaysOfWeek),
		IsActive:       r.IsActive,
		Instructions:   r.Instructions,
	}
	var err error
	if s.StartDate, err = parseDate(r.StartDate); err != nil {
		return nil, fmt.Errorf("schedule %s start_date: %w", r.ID, err)
	}
	if s.EndDate, err = parseDatePtr(r.EndDate); err != nil {
		return nil, fmt.Errorf("schedule %s end_date: %w", r.ID, err)
	}
	if s.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("schedule %s created_at: %w", r.ID, err)
	}
	if s.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("schedule %s updated_at: %w", r.ID, err)
	}
	return s, nil
}

const scheduleCols = `id, patient_id, prescription_id, medication_name, dosage, frequency,
	start_date, end_date, time_of_day, days_of_week, is_active, instructions,
	created_at, updated_at`

func toSchedules(rows []scheduleRow) ([]*reminder.Schedule, error) {
	items := make([]*reminder.Schedule, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSchedule()
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func (r *scheduleStore) Create(ctx context.Context, s *reminder.Schedule) error {
	s.ID = uuid.New()
	if s.TimeOfDay == nil {
		s.TimeOfDay = []string{}
	}
	if s.DaysOfWeek == nil {
		s.DaysOfWeek = []string{}
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminder_schedule (id, patient_id, prescription_id, medication_name, dosage,
			frequency, start_date, end_date, time_of_day, days_of_week, is_active, instructions,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.PatientID.String(), nullableID(s.PrescriptionID), s.MedicationName, s.Dosage,
		string(s.Frequency), formatDate(s.StartDate), formatDatePtr(s.EndDate),
		stringList(s.TimeOfDay), stringList(s.DaysOfWeek), s.IsActive, s.Instructions,
		formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert reminder schedule: %w", err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

func (r *scheduleStore) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Schedule, error) {
	var row scheduleRow
	err := r.db.GetContext(ctx, &row, `SELECT `+scheduleCols+` FROM reminder_schedule WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reminder.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder schedule: %w", err)
	}
	return row.toSchedule()
}

func (r *scheduleStore) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*reminder.Schedule, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM reminder_schedule WHERE patient_id = ?`, patientID.String()); err != nil {
		return nil, 0, fmt.Errorf("count reminder schedules: %w", err)
	}
	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+scheduleCols+` FROM reminder_schedule
		WHERE patient_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		patientID.String(), limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list reminder schedules: %w", err)
	}
	items, err := toSchedules(rows)
	return items, total, err
}

func (r *scheduleStore) FindActive(ctx context.Context, filter reminder.ActiveFilter) ([]*reminder.Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM reminder_schedule WHERE is_active = 1`
	var args []interface{}
	if filter.PatientID != nil {
		query += ` AND patient_id = ?`
		args = append(args, filter.PatientID.String())
	}
	if filter.AsOf != nil {
		date := formatDate(*filter.AsOf)
		query += ` AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)`
		args = append(args, date, date)
	}
	query += ` ORDER BY start_date, id`

	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find active reminder schedules: %w", err)
	}

	// A row that does not decode is never due; it must not hide the others.
	items := make([]*reminder.Schedule, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSchedule()
		if err != nil {
			r.logger.Warn().Err(err).Str("schedule_id", row.ID.String()).Msg("skipping undecodable reminder schedule")
			continue
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *scheduleStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminder_schedule SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, formatTime(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("update reminder schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reminder.ErrScheduleNotFound
	}
	return nil
}
