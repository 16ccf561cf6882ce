package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/platform/auth"
)

type ownerMap map[uuid.UUID]uuid.UUID

func (m ownerMap) PatientUserID(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	uid, ok := m[id]
	if !ok {
		return uuid.Nil, NotFound("patient", id)
	}
	return uid, nil
}

func TestAuthorizePatient(t *testing.T) {
	patient, owner := uuid.New(), uuid.New()
	owners := ownerMap{patient: owner}

	tests := []struct {
		name    string
		userID  string
		roles   []string
		patient uuid.UUID
		want    error
	}{
		{"care role any patient", uuid.NewString(), []string{"nurse"}, patient, nil},
		{"admin", "dev-user", []string{auth.RoleAdmin}, uuid.New(), nil},
		{"patient own record", owner.String(), []string{auth.RolePatient}, patient, nil},
		{"patient other record", uuid.NewString(), []string{auth.RolePatient}, patient, ErrForbidden},
		{"patient unknown record", owner.String(), []string{auth.RolePatient}, uuid.New(), ErrForbidden},
		{"patient non-uuid identity", "dev-user", []string{auth.RolePatient}, patient, ErrForbidden},
		{"no role", owner.String(), nil, patient, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := auth.WithIdentity(context.Background(), tt.userID, tt.roles)
			err := AuthorizePatient(ctx, owners, tt.patient, "physician", "nurse")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
