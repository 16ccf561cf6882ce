package vitals

import (
	"strings"
	"testing"
)

func bp(s string) Signs { return Signs{BloodPressure: &s} }

func TestEvaluate_HighBloodPressure(t *testing.T) {
	for i := 0; i < 3; i++ {
		alerts := Evaluate(bp("150/95"))
		if len(alerts) != 1 {
			t.Fatalf("run %d: expected 1 alert, got %d", i, len(alerts))
		}
		if alerts[0].Type != AlertHighBloodPressure {
			t.Errorf("expected high_blood_pressure, got %s", alerts[0].Type)
		}
		if !strings.Contains(alerts[0].Message, "150/95") {
			t.Errorf("expected message to contain reading, got %q", alerts[0].Message)
		}
	}
}

func TestEvaluate_NormalBloodPressure(t *testing.T) {
	if alerts := Evaluate(bp("120/80")); len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %v", alerts)
	}
}

func TestEvaluate_LowBloodPressure(t *testing.T) {
	alerts := Evaluate(bp("85/55"))
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Type != AlertLowBloodPressure {
		t.Errorf("expected low_blood_pressure, got %s", alerts[0].Type)
	}
}

func TestEvaluate_HighTakesPrecedence(t *testing.T) {
	// systolic high, diastolic low
	alerts := Evaluate(bp("150/50"))
	if len(alerts) != 1 || alerts[0].Type != AlertHighBloodPressure {
		t.Fatalf("expected single high alert, got %v", alerts)
	}
}

func TestEvaluate_BoundaryValuesAreNormal(t *testing.T) {
	for _, reading := range []string{"140/90", "90/60"} {
		if alerts := Evaluate(bp(reading)); len(alerts) != 0 {
			t.Errorf("%s: expected no alerts, got %v", reading, alerts)
		}
	}
}

func TestEvaluate_MalformedBloodPressure(t *testing.T) {
	for _, reading := range []string{"abc", "", "120", "120/80/70", "x/80", "120/y", "/"} {
		if alerts := Evaluate(bp(reading)); len(alerts) != 0 {
			t.Errorf("%q: expected no alerts, got %v", reading, alerts)
		}
	}
}

func TestEvaluate_WhitespaceTolerated(t *testing.T) {
	alerts := Evaluate(bp(" 150 / 95 "))
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
}

func TestEvaluate_OtherSignsDoNotAlert(t *testing.T) {
	pulse, temp, weight := 180.0, 104.0, 300.0
	alerts := Evaluate(Signs{Pulse: &pulse, Temperature: &temp, Weight: &weight})
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts without blood pressure, got %v", alerts)
	}
}

func TestEvaluate_Empty(t *testing.T) {
	if alerts := Evaluate(Signs{}); alerts != nil {
		t.Fatalf("expected nil, got %v", alerts)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		metric Metric
		value  float64
		want   Level
	}{
		{MetricPulse, 72, LevelNormal},
		{MetricPulse, 101, LevelHigh},
		{MetricPulse, 59, LevelLow},
		{MetricTemperature, 100.5, LevelHigh},
		{MetricTemperature, 94.9, LevelLow},
		{MetricWeightChange, 6, LevelHigh},
		{MetricWeightChange, -6, LevelLow},
		{MetricWeightChange, 2, LevelNormal},
		{Metric("glucose"), 1000, LevelNormal},
	}
	for _, tt := range tests {
		if got := Check(tt.metric, tt.value); got != tt.want {
			t.Errorf("Check(%s, %v) = %v, want %v", tt.metric, tt.value, got, tt.want)
		}
	}
}
