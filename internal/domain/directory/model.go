// Package directory reads the people, appointments and prescriptions that
// notifications are addressed about. The records are owned by the clinical
// application; this package never writes them.
package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned, wrapped in a *NotFoundError, when a referenced
// record does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError names the entity that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a *NotFoundError for entity/id.
func NotFound(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
}

type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
}

type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status      string    `db:"status" json:"status"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
}

type Prescription struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	PatientID uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID  *uuid.UUID         `db:"doctor_id" json:"doctor_id,omitempty"`
	Items     []PrescriptionItem `db:"-" json:"items"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// PrescriptionItem is one medication line on a prescription, carrying the
// schedule fields a reminder is created from.
type PrescriptionItem struct {
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Frequency      string     `db:"frequency" json:"frequency"`
	TimeOfDay      []string   `db:"time_of_day" json:"time_of_day"`
	DaysOfWeek     []string   `db:"days_of_week" json:"days_of_week"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Instructions   string     `db:"instructions" json:"instructions,omitempty"`
}

// Contact is where e-mail for a patient goes. Email is empty when the
// patient has no address on file.
type Contact struct {
	Name  string
	Email string
}

// Name is the result of a display-name lookup: either a found value or
// nothing. Fallbacks are applied by the caller with OrElse.
type Name struct {
	value string
	found bool
}

// Found wraps a resolved name. Blank names count as not found.
func Found(v string) Name {
	v = strings.TrimSpace(v)
	return Name{value: v, found: v != ""}
}

// NoName is the not-found Name.
func NoName() Name { return Name{} }

func (n Name) Get() (string, bool) { return n.value, n.found }

func (n Name) OrElse(fallback string) string {
	if !n.found {
		return fallback
	}
	return n.value
}

// FullName joins first and last name.
func FullName(first, last string) Name {
	return Found(strings.TrimSpace(first + " " + last))
}
