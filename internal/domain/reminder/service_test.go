package reminder

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/domain/directory"
)

// -- Mocks --

type mockRepo struct {
	items map[uuid.UUID]*Schedule
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Schedule)}
}

func (m *mockRepo) Create(_ context.Context, s *Schedule) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	var out []*Schedule
	for _, s := range m.items {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) FindActive(_ context.Context, filter ActiveFilter) ([]*Schedule, error) {
	var out []*Schedule
	for _, s := range m.items {
		if !s.IsActive {
			continue
		}
		if filter.PatientID != nil && s.PatientID != *filter.PatientID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MedicationName < out[j].MedicationName })
	return out, nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	s, ok := m.items[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.IsActive = active
	return nil
}

type mockPrescriptions struct {
	items map[uuid.UUID]*directory.Prescription
}

func (m *mockPrescriptions) GetPrescription(_ context.Context, id uuid.UUID) (*directory.Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, directory.NotFound("prescription", id)
	}
	return p, nil
}

func newTestService() (*Service, *mockRepo, *mockPrescriptions) {
	repo := newMockRepo()
	rx := &mockPrescriptions{items: make(map[uuid.UUID]*directory.Prescription)}
	return NewService(repo, rx, time.UTC), repo, rx
}

func validSchedule() *Schedule {
	return &Schedule{
		PatientID:      uuid.New(),
		MedicationName: "Metformin",
		Dosage:         "500mg",
		Frequency:      FrequencyTwiceDaily,
		StartDate:      day(2026, 3, 1),
		TimeOfDay:      []string{"morning", "evening"},
	}
}

// -- Tests --

func TestService_Create(t *testing.T) {
	svc, repo, _ := newTestService()
	s := validSchedule()
	s.DaysOfWeek = []string{"mon", "Monday", "FRI", "someday"}
	if err := svc.Create(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if !s.IsActive {
		t.Error("expected new schedule to be active")
	}
	want := []string{"Monday", "Friday", "someday"}
	if len(s.DaysOfWeek) != len(want) {
		t.Fatalf("expected %v, got %v", want, s.DaysOfWeek)
	}
	for i := range want {
		if s.DaysOfWeek[i] != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], s.DaysOfWeek[i])
		}
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 stored schedule, got %d", len(repo.items))
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	end := day(2026, 2, 1)
	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"missing patient", func(s *Schedule) { s.PatientID = uuid.Nil }},
		{"missing medication", func(s *Schedule) { s.MedicationName = "  " }},
		{"unknown frequency", func(s *Schedule) { s.Frequency = "hourly" }},
		{"missing start", func(s *Schedule) { s.StartDate = time.Time{} }},
		{"end before start", func(s *Schedule) { s.EndDate = &end }},
	}
	for _, tt := range tests {
		s := validSchedule()
		tt.mutate(s)
		err := svc.Create(context.Background(), s)
		if !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("%s: expected ErrInvalidSchedule, got %v", tt.name, err)
		}
	}
}

func TestService_Create_DefaultFrequency(t *testing.T) {
	svc, _, _ := newTestService()
	s := validSchedule()
	s.Frequency = ""
	if err := svc.Create(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Frequency != FrequencyOnceDaily {
		t.Errorf("expected once_daily, got %s", s.Frequency)
	}
}

func TestService_Deactivate(t *testing.T) {
	svc, _, _ := newTestService()
	s := validSchedule()
	svc.Create(context.Background(), s)

	got, err := svc.Deactivate(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsActive {
		t.Error("expected schedule to be inactive")
	}
	active, _ := svc.FindActive(context.Background(), ActiveFilter{})
	if len(active) != 0 {
		t.Errorf("expected no active schedules, got %d", len(active))
	}
	if _, err := svc.Deactivate(context.Background(), s.ID); err != nil {
		t.Errorf("second deactivate should succeed, got %v", err)
	}
}

func TestService_Deactivate_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Deactivate(context.Background(), uuid.New()); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestService_CreateFromPrescription(t *testing.T) {
	svc, repo, rx := newTestService()
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	p := &directory.Prescription{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		CreatedAt: created,
		Items: []directory.PrescriptionItem{
			{MedicationName: "Amoxicillin", Dosage: "250mg", Frequency: "three_times_daily", StartDate: day(2026, 3, 2)},
			{MedicationName: "Ibuprofen", Dosage: "200mg", Frequency: "as_needed", TimeOfDay: []string{"as_needed"}},
		},
	}
	rx.items[p.ID] = p

	schedules, err := svc.CreateFromPrescription(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedules) != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 schedules, got %d (stored %d)", len(schedules), len(repo.items))
	}
	for _, s := range schedules {
		if s.PatientID != p.PatientID {
			t.Error("expected schedule to belong to prescription patient")
		}
		if s.PrescriptionID == nil || *s.PrescriptionID != p.ID {
			t.Error("expected prescription id to be recorded")
		}
	}
	if !schedules[1].StartDate.Equal(created) {
		t.Errorf("expected missing start date to default to prescription date, got %v", schedules[1].StartDate)
	}
}

func TestService_CreateFromPrescription_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateFromPrescription(context.Background(), uuid.New())
	if !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("expected directory.ErrNotFound, got %v", err)
	}
}

func TestService_NextOccurrence(t *testing.T) {
	svc, _, _ := newTestService()
	s := validSchedule()
	svc.Create(context.Background(), s)
	svc.now = func() time.Time { return at(10, 0) }

	_, occ, err := svc.NextOccurrence(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if occ.Label != "Today, 07:00 PM" {
		t.Errorf("expected Today, 07:00 PM, got %q", occ.Label)
	}
	if occ.Slot == nil || occ.Slot.Hour != 19 {
		t.Errorf("expected evening slot, got %v", occ.Slot)
	}
}
