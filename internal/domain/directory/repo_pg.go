package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type directoryPG struct{ db queryable }

// NewDirectoryPG reads directory records from the clinical Postgres schema.
func NewDirectoryPG(pool *pgxpool.Pool) Directory {
	return &directoryPG{db: pool}
}

func (r *directoryPG) userID(ctx context.Context, table, entity string, id uuid.UUID) (uuid.UUID, error) {
	var uid uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, id).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, NotFound(entity, id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup %s user: %w", entity, err)
	}
	return uid, nil
}

func (r *directoryPG) PatientUserID(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return r.userID(ctx, "patient", "patient", patientID)
}

func (r *directoryPG) DoctorUserID(ctx context.Context, doctorID uuid.UUID) (uuid.UUID, error) {
	return r.userID(ctx, "doctor", "doctor", doctorID)
}

func (r *directoryPG) name(ctx context.Context, table string, id uuid.UUID) (Name, error) {
	var first, last string
	err := r.db.QueryRow(ctx, `SELECT first_name, last_name FROM `+table+` WHERE id = $1`, id).Scan(&first, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return NoName(), nil
	}
	if err != nil {
		return NoName(), fmt.Errorf("lookup %s name: %w", table, err)
	}
	return FullName(first, last), nil
}

func (r *directoryPG) PatientName(ctx context.Context, patientID uuid.UUID) (Name, error) {
	return r.name(ctx, "patient", patientID)
}

func (r *directoryPG) DoctorName(ctx context.Context, doctorID uuid.UUID) (Name, error) {
	return r.name(ctx, "doctor", doctorID)
}

func (r *directoryPG) PatientContact(ctx context.Context, patientID uuid.UUID) (Contact, error) {
	var first, last string
	var email *string
	err := r.db.QueryRow(ctx, `
		SELECT p.first_name, p.last_name, COALESCE(p.email, u.email)
		FROM patient p LEFT JOIN app_user u ON u.id = p.user_id
		WHERE p.id = $1`, patientID).Scan(&first, &last, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, NotFound("patient", patientID)
	}
	if err != nil {
		return Contact{}, fmt.Errorf("lookup patient contact: %w", err)
	}
	c := Contact{Name: FullName(first, last).OrElse("")}
	if email != nil {
		c.Email = *email
	}
	return c, nil
}

func (r *directoryPG) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.db.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, scheduled_at, status, reason
		FROM appointment WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status, &a.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("appointment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &a, nil
}

func (r *directoryPG) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.db.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, created_at
		FROM prescription WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("prescription", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT medication_name, dosage, frequency, time_of_day, days_of_week,
			start_date, end_date, COALESCE(instructions, '')
		FROM prescription_item WHERE prescription_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list prescription items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.MedicationName, &it.Dosage, &it.Frequency, &it.TimeOfDay,
			&it.DaysOfWeek, &it.StartDate, &it.EndDate, &it.Instructions); err != nil {
			return nil, fmt.Errorf("scan prescription item: %w", err)
		}
		p.Items = append(p.Items, it)
	}
	return &p, rows.Err()
}
