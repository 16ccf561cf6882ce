package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/platform/auth"
)

// ErrForbidden is returned when the caller may not act for a patient.
var ErrForbidden = errors.New("caller may not act for this patient")

type PatientUserLookup interface {
	PatientUserID(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
}

// AuthorizePatient checks the identity on ctx against patientID. A caller
// holding one of careRoles (or admin) may act for any patient. A caller with
// only the patient role may act for the patient record linked to its own user.
// A missing record is reported as ErrForbidden to a patient caller.
func AuthorizePatient(ctx context.Context, lookup PatientUserLookup, patientID uuid.UUID, careRoles ...string) error {
	roles := auth.RolesFromContext(ctx)
	if auth.HasRole(roles, careRoles...) {
		return nil
	}
	if !auth.HasRole(roles, auth.RolePatient) {
		return ErrForbidden
	}

	caller, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return ErrForbidden
	}
	owner, err := lookup.PatientUserID(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrForbidden
	}
	return nil
}
