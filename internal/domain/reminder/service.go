package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/domain/directory"
)

var ErrInvalidSchedule = errors.New("invalid reminder schedule")

type Service struct {
	repo          Repository
	prescriptions directory.PrescriptionLookup
	loc           *time.Location
	now           func() time.Time
}

// NewService builds the schedule service. loc is the zone next-occurrence
// labels are computed in; nil means UTC.
func NewService(repo Repository, prescriptions directory.PrescriptionLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, prescriptions: prescriptions, loc: loc, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}

func (s *Service) validate(sch *Schedule) error {
	if sch.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	sch.MedicationName = strings.TrimSpace(sch.MedicationName)
	if sch.MedicationName == "" {
		return invalid("medication_name is required")
	}
	if sch.Frequency == "" {
		sch.Frequency = FrequencyOnceDaily
	}
	if !sch.Frequency.Valid() {
		return invalid("unknown frequency %q", sch.Frequency)
	}
	if sch.StartDate.IsZero() {
		return invalid("start_date is required")
	}
	if sch.EndDate != nil && sch.EndDate.Before(sch.StartDate) {
		return invalid("end_date is before start_date")
	}
	sch.DaysOfWeek = normalizeDays(sch.DaysOfWeek)
	return nil
}

// normalizeDays rewrites recognised weekday names in full form and drops
// duplicates. Unrecognised names are kept so the resolver can ignore them.
func normalizeDays(days []string) []string {
	if len(days) == 0 {
		return days
	}
	seen := make(map[string]bool, len(days))
	out := make([]string, 0, len(days))
	for _, raw := range days {
		name := strings.TrimSpace(raw)
		if d, ok := ParseWeekday(name); ok {
			name = d.String()
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func (s *Service) Create(ctx context.Context, sch *Schedule) error {
	if err := s.validate(sch); err != nil {
		return err
	}
	sch.IsActive = true
	return s.repo.Create(ctx, sch)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) FindActive(ctx context.Context, filter ActiveFilter) ([]*Schedule, error) {
	return s.repo.FindActive(ctx, filter)
}

// Deactivate stops future reminders for a schedule. Deactivating an inactive
// schedule is not an error.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// CreateFromPrescription creates one schedule per prescription item.
func (s *Service) CreateFromPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Schedule, error) {
	p, err := s.prescriptions.GetPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	created := make([]*Schedule, 0, len(p.Items))
	for i, it := range p.Items {
		pid := p.ID
		sch := &Schedule{
			PatientID:      p.PatientID,
			PrescriptionID: &pid,
			MedicationName: it.MedicationName,
			Dosage:         it.Dosage,
			Frequency:      Frequency(it.Frequency),
			StartDate:      it.StartDate,
			EndDate:        it.EndDate,
			TimeOfDay:      it.TimeOfDay,
			DaysOfWeek:     it.DaysOfWeek,
			Instructions:   it.Instructions,
		}
		if sch.StartDate.IsZero() {
			sch.StartDate = p.CreatedAt
		}
		if err := s.Create(ctx, sch); err != nil {
			return created, fmt.Errorf("item %d: %w", i, err)
		}
		created = append(created, sch)
	}
	return created, nil
}

// NextOccurrence describes the schedule's next dose relative to the current
// time in the service's zone.
func (s *Service) NextOccurrence(ctx context.Context, id uuid.UUID) (*Schedule, Occurrence, error) {
	sch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Occurrence{}, err
	}
	return sch, NextOccurrence(sch, s.now().In(s.loc)), nil
}
