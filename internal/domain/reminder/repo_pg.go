package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type scheduleRepoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &scheduleRepoPG{db: pool}
}

const scheduleCols = `id, patient_id, prescription_id, medication_name, dosage, frequency,
	start_date, end_date, time_of_day, days_of_week, is_active, instructions,
	created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.PatientID, &s.PrescriptionID, &s.MedicationName, &s.Dosage,
		&s.Frequency, &s.StartDate, &s.EndDate, &s.TimeOfDay, &s.DaysOfWeek, &s.IsActive,
		&s.Instructions, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	if s.TimeOfDay == nil {
		s.TimeOfDay = []string{}
	}
	if s.DaysOfWeek == nil {
		s.DaysOfWeek = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO reminder_schedule (id, patient_id, prescription_id, medication_name, dosage,
			frequency, start_date, end_date, time_of_day, days_of_week, is_active, instructions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.PrescriptionID, s.MedicationName, s.Dosage, s.Frequency,
		s.StartDate, s.EndDate, s.TimeOfDay, s.DaysOfWeek, s.IsActive, s.Instructions).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.db.QueryRow(ctx, `SELECT `+scheduleCols+` FROM reminder_schedule WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder schedule: %w", err)
	}
	return s, nil
}

func (r *scheduleRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reminder_schedule WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reminder schedules: %w", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+scheduleCols+` FROM reminder_schedule
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reminder schedules: %w", err)
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *scheduleRepoPG) FindActive(ctx context.Context, filter ActiveFilter) ([]*Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM reminder_schedule WHERE is_active = TRUE`
	var args []interface{}
	idx := 1
	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *filter.PatientID)
		idx++
	}
	if filter.AsOf != nil {
		query += fmt.Sprintf(" AND start_date <= $%d::date AND (end_date IS NULL OR end_date >= $%d::date)", idx, idx)
		d := filter.AsOf
		args = append(args, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC))
	}
	query += " ORDER BY start_date, id"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find active reminder schedules: %w", err)
	}
	return collect(rows)
}

func (r *scheduleRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE reminder_schedule SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update reminder schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]*Schedule, error) {
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder schedule: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
