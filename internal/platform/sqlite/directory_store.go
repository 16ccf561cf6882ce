package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/domain/directory"
)

// DirectoryStore reads the clinical records. The Put methods exist so a
// standalone deployment and tests can seed them.
type DirectoryStore struct{ store *Store }

// Directory returns the directory lookups backed by this store.
func (s *Store) Directory() *DirectoryStore {
	return &DirectoryStore{store: s}
}

var _ directory.Directory = (*DirectoryStore)(nil)

func (d *DirectoryStore) userID(ctx context.Context, table, entity string, id uuid.UUID) (uuid.UUID, error) {
	var uid uuid.UUID
	err := d.store.db.GetContext(ctx, &uid, `SELECT user_id FROM `+table+` WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, directory.NotFound(entity, id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup %s user: %w", entity, err)
	}
	return uid, nil
}

func (d *DirectoryStore) PatientUserID(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return d.userID(ctx, "patient", "patient", patientID)
}

func (d *DirectoryStore) DoctorUserID(ctx context.Context, doctorID uuid.UUID) (uuid.UUID, error) {
	return d.userID(ctx, "doctor", "doctor", doctorID)
}

type nameRow struct {
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

func (d *DirectoryStore) name(ctx context.Context, table string, id uuid.UUID) (directory.Name, error) {
	var row nameRow
	err := d.store.db.GetContext(ctx, &row, `SELECT first_name, last_name FROM `+table+` WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return directory.NoName(), nil
	}
	if err != nil {
		return directory.NoName(), fmt.Errorf("lookup %s name: %w", table, err)
	}
	return directory.FullName(row.FirstName, row.LastName), nil
}

func (d *DirectoryStore) PatientName(ctx context.Context, patientID uuid.UUID) (directory.Name, error) {
	return d.name(ctx, "patient", patientID)
}

func (d *DirectoryStore) DoctorName(ctx context.Context, doctorID uuid.UUID) (directory.Name, error) {
	return d.name(ctx, "doctor", doctorID)
}

func (d *DirectoryStore) PatientContact(ctx context.Context, patientID uuid.UUID) (directory.Contact, error) {
	var row struct {
		FirstName string  `db:"first_name"`
		LastName  string  `db:"last_name"`
		Email     *string `db:"email"`
	}
	err := d.store.db.GetContext(ctx, &row, `
		SELECT p.first_name, p.last_name, COALESCE(p.email, u.email) AS email
		FROM patient p LEFT JOIN app_user u ON u.id = p.user_id
		WHERE p.id = ?`, patientID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Contact{}, directory.NotFound("patient", patientID)
	}
	if err != nil {
		return directory.Contact{}, fmt.Errorf("lookup patient contact: %w", err)
	}
	c := directory.Contact{Name: directory.FullName(row.FirstName, row.LastName).OrElse("")}
	if row.Email != nil {
		c.Email = *row.Email
	}
	return c, nil
}

func (d *DirectoryStore) GetAppointment(ctx context.Context, id uuid.UUID) (*directory.Appointment, error) {
	var row struct {
		ID          uuid.UUID `db:"id"`
		PatientID   uuid.UUID `db:"patient_id"`
		DoctorID    uuid.UUID `db:"doctor_id"`
		ScheduledAt string    `db:"scheduled_at"`
		Status      string    `db:"status"`
		Reason      *string   `db:"reason"`
	}
	err := d.store.db.GetContext(ctx, &row, `
		SELECT id, patient_id, doctor_id, scheduled_at, status, reason
		FROM appointment WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.NotFound("appointment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	at, err := parseTime(row.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("appointment %s scheduled_at: %w", id, err)
	}
	return &directory.Appointment{
		ID: row.ID, PatientID: row.PatientID, DoctorID: row.DoctorID,
		ScheduledAt: at, Status: row.Status, Reason: row.Reason,
	}, nil
}

type prescriptionItemRow struct {
	MedicationName string     `db:"medication_name"`
	Dosage         string     `db:"dosage"`
	Frequency      string     `db:"frequency"`
	TimeOfDay      stringList `db:"time_of_day"`
	DaysOfWeek     stringList `db:"days_of_week"`
	StartDate      string     `db:"start_date"`
	EndDate        *string    `db:"end_date"`
	Instructions   string     `db:"instructions"`
}

func (d *DirectoryStore) GetPrescription(ctx context.Context, id uuid.UUID) (*directory.Prescription, error) {
	var row struct {
		ID        uuid.UUID  `db:"id"`
		PatientID uuid.UUID  `db:"patient_id"`
		DoctorID  *uuid.UUID `db:"doctor_id"`
		CreatedAt string     `db:"created_at"`
	}
	err := d.store.db.GetContext(ctx, &row,
		`SELECT id, patient_id, doctor_id, created_at FROM prescription WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.NotFound("prescription", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("prescription %s created_at: %w", id, err)
	}

	var items []prescriptionItemRow
	if err := d.store.db.SelectContext(ctx, &items, `
		SELECT medication_name, dosage, frequency, time_of_day, days_of_week,
			start_date, end_date, COALESCE(instructions, '') AS instructions
		FROM prescription_item WHERE prescription_id = ?
		ORDER BY position`, id.String()); err != nil {
		return nil, fmt.Errorf("list prescription items: %w", err)
	}

	p := &directory.Prescription{ID: row.ID, PatientID: row.PatientID, DoctorID: row.DoctorID, CreatedAt: created}
	for _, it := range items {
		start, err := parseDate(it.StartDate)
		if err != nil {
			return nil, fmt.Errorf("prescription %s item start_date: %w", id, err)
		}
		end, err := parseDatePtr(it.EndDate)
		if err != nil {
			return nil, fmt.Errorf("prescription %s item end_date: %w", id, err)
		}
		p.Items = append(p.Items, directory.PrescriptionItem{
			MedicationName: it.MedicationName,
			Dosage:         it.Dosage,
			Frequency:      it.Frequency,
			TimeOfDay:      []string(it.TimeOfDay),
			DaysOfWeek:     []string(it.DaysOfWeek),
			StartDate:      start,
			EndDate:        end,
			Instructions:   it.Instructions,
		})
	}
	return p, nil
}

// -- Seeding --

// PutUser records a login account's e-mail address.
func (d *DirectoryStore) PutUser(ctx context.Context, id uuid.UUID, email string) error {
	_, err := d.store.db.ExecContext(ctx, `INSERT INTO app_user (id, email) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email`,
		id.String(), email)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (d *DirectoryStore) PutPatient(ctx context.Context, p directory.Patient) error {
	_, err := d.store.db.ExecContext(ctx, `
		INSERT INTO patient (id, user_id, first_name, last_name, email)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, first_name = excluded.first_name,
			last_name = excluded.last_name, email = excluded.email`,
		p.ID.String(), p.UserID.String(), p.FirstName, p.LastName, p.Email)
	if err != nil {
		return fmt.Errorf("put patient: %w", err)
	}
	return nil
}

func (d *DirectoryStore) PutDoctor(ctx context.Context, doc directory.Doctor) error {
	_, err := d.store.db.ExecContext(ctx, `
		INSERT INTO doctor (id, user_id, first_name, last_name, email)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, first_name = excluded.first_name,
			last_name = excluded.last_name, email = excluded.email`,
		doc.ID.String(), doc.UserID.String(), doc.FirstName, doc.LastName, doc.Email)
	if err != nil {
		return fmt.Errorf("put doctor: %w", err)
	}
	return nil
}

func (d *DirectoryStore) PutAppointment(ctx context.Context, a directory.Appointment) error {
	_, err := d.store.db.ExecContext(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, scheduled_at, status, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET scheduled_at = excluded.scheduled_at, status = excluded.status,
			reason = excluded.reason`,
		a.ID.String(), a.PatientID.String(), a.DoctorID.String(), formatTime(a.ScheduledAt), a.Status, a.Reason)
	if err != nil {
		return fmt.Errorf("put appointment: %w", err)
	}
	return nil
}

// PutPrescription writes the prescription and replaces its items.
func (d *DirectoryStore) PutPrescription(ctx context.Context, p *directory.Prescription) error {
	tx, err := d.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prescription (id, patient_id, doctor_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET doctor_id = excluded.doctor_id`,
		p.ID.String(), p.PatientID.String(), nullableID(p.DoctorID), formatTime(p.CreatedAt)); err != nil {
		return fmt.Errorf("put prescription: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM prescription_item WHERE prescription_id = ?`, p.ID.String()); err != nil {
		return fmt.Errorf("clear prescription items: %w", err)
	}
	for i, it := range p.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prescription_item (prescription_id, position, medication_name, dosage, frequency,
				time_of_day, days_of_week, start_date, end_date, instructions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID.String(), i, it.MedicationName, it.Dosage, it.Frequency,
			stringList(it.TimeOfDay), stringList(it.DaysOfWeek),
			formatDate(it.StartDate), formatDatePtr(it.EndDate), it.Instructions); err != nil {
			return fmt.Errorf("put prescription item %d: %w", i, err)
		}
	}
	return tx.Commit()
}
