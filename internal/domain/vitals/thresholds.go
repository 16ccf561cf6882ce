// Package vitals evaluates a vital-signs snapshot against fixed clinical
// bounds. Evaluation is pure: no I/O, no state between calls.
package vitals

import (
	"fmt"
	"strconv"
	"strings"
)

// AlertType is the category tag carried by an alert and by the notification
// persisted for it.
type AlertType string

const (
	AlertHighBloodPressure AlertType = "high_blood_pressure"
	AlertLowBloodPressure  AlertType = "low_blood_pressure"
)

// Metric identifies a vital sign with threshold bounds.
type Metric string

const (
	MetricSystolic     Metric = "systolic"
	MetricDiastolic    Metric = "diastolic"
	MetricPulse        Metric = "pulse"
	MetricTemperature  Metric = "temperature"
	MetricWeightChange Metric = "weight_change"
)

// Bounds is an inclusive-normal range: values strictly above High or strictly
// below Low are out of range.
type Bounds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Blood pressure bounds, mmHg.
const (
	SystolicHigh  = 140
	DiastolicHigh = 90
	SystolicLow   = 90
	DiastolicLow  = 60
)

// Bounds for pulse (bpm), temperature (Fahrenheit) and weight change (lb
// between consecutive readings). Only blood pressure raises alerts today.
const (
	PulseHigh         = 100
	PulseLow          = 60
	TemperatureHigh   = 100.4
	TemperatureLow    = 95.0
	WeightChangeLimit = 5.0
)

// Rules is the full threshold table.
var Rules = map[Metric]Bounds{
	MetricSystolic:     {High: SystolicHigh, Low: SystolicLow},
	MetricDiastolic:    {High: DiastolicHigh, Low: DiastolicLow},
	MetricPulse:        {High: PulseHigh, Low: PulseLow},
	MetricTemperature:  {High: TemperatureHigh, Low: TemperatureLow},
	MetricWeightChange: {High: WeightChangeLimit, Low: -WeightChangeLimit},
}

// Level is the position of a value relative to its Bounds.
type Level int

const (
	LevelNormal Level = iota
	LevelHigh
	LevelLow
)

// Check classifies value against the bounds of metric. Unknown metrics are
// always normal.
func Check(metric Metric, value float64) Level {
	b, ok := Rules[metric]
	if !ok {
		return LevelNormal
	}
	switch {
	case value > b.High:
		return LevelHigh
	case value < b.Low:
		return LevelLow
	default:
		return LevelNormal
	}
}

// Signs is one submitted vital-signs snapshot. Every field is optional.
type Signs struct {
	BloodPressure *string  `json:"blood_pressure,omitempty"`
	Pulse         *float64 `json:"pulse,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
}

// Alert is a threshold crossing not yet persisted.
type Alert struct {
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
}

// Evaluate returns the alerts raised by s. Malformed fields are skipped.
func Evaluate(s Signs) []Alert {
	var alerts []Alert
	if a, ok := evaluateBloodPressure(s.BloodPressure); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func evaluateBloodPressure(raw *string) (Alert, bool) {
	if raw == nil {
		return Alert{}, false
	}
	reading := strings.TrimSpace(*raw)
	systolic, diastolic, ok := ParseBloodPressure(reading)
	if !ok {
		return Alert{}, false
	}

	if systolic > SystolicHigh || diastolic > DiastolicHigh {
		return Alert{
			Type:    AlertHighBloodPressure,
			Message: fmt.Sprintf("Blood pressure reading of %s is above the normal range (%d/%d).", reading, SystolicHigh, DiastolicHigh),
		}, true
	}
	if systolic < SystolicLow || diastolic < DiastolicLow {
		return Alert{
			Type:    AlertLowBloodPressure,
			Message: fmt.Sprintf("Blood pressure reading of %s is below the normal range (%d/%d).", reading, SystolicLow, DiastolicLow),
		}, true
	}
	return Alert{}, false
}

// ParseBloodPressure splits a "systolic/diastolic" reading. It reports false
// unless there are exactly two numeric parts.
func ParseBloodPressure(reading string) (systolic, diastolic float64, ok bool) {
	parts := strings.Split(reading, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	sys, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	dia, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return sys, dia, true
}
