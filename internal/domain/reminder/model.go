package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Frequency is how often a medication is taken per day.
type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once_daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyFourTimesDaily  Frequency = "four_times_daily"
	FrequencyAsNeeded        Frequency = "as_needed"
)

var validFrequencies = map[Frequency]bool{
	FrequencyOnceDaily:       true,
	FrequencyTwiceDaily:      true,
	FrequencyThreeTimesDaily: true,
	FrequencyFourTimesDaily:  true,
	FrequencyAsNeeded:        true,
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	return validFrequencies[f]
}

// Named time-of-day slots.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
	SlotAsNeeded  = "as_needed"
)

// Schedule is a recurring medication instruction for one patient.
type Schedule struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescriptionID *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Frequency      Frequency  `db:"frequency" json:"frequency"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	TimeOfDay      []string   `db:"time_of_day" json:"time_of_day"`
	DaysOfWeek     []string   `db:"days_of_week" json:"days_of_week"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	Instructions   string     `db:"instructions" json:"instructions,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ActiveFilter narrows FindActive. Zero value means all active schedules.
type ActiveFilter struct {
	PatientID *uuid.UUID
	// AsOf excludes schedules that start after or ended before this date.
	AsOf *time.Time
}

// Occurrence is a schedule's next resolved dose, for display.
type Occurrence struct {
	Label string `json:"label"`
	Slot  *Slot  `json:"slot,omitempty"`
}
