package directory

import (
	"context"

	"github.com/google/uuid"
)

// PersonLookup resolves patients and doctors to their login accounts and
// display names. User-id lookups return a *NotFoundError when the record is
// missing; name lookups never fail on a missing record.
type PersonLookup interface {
	PatientUserID(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	DoctorUserID(ctx context.Context, doctorID uuid.UUID) (uuid.UUID, error)
	PatientName(ctx context.Context, patientID uuid.UUID) (Name, error)
	DoctorName(ctx context.Context, doctorID uuid.UUID) (Name, error)
	PatientContact(ctx context.Context, patientID uuid.UUID) (Contact, error)
}

type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
}

type PrescriptionLookup interface {
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
}

// Directory is every lookup the notification flows need.
type Directory interface {
	PersonLookup
	AppointmentLookup
	PrescriptionLookup
}
