package reminderjob

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_Sweep(t *testing.T) {
	f := newFixture(schedule("Lisinopril", "morning"))
	h := NewHandler(f.job)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/?at=2026-03-11T08:30:00Z", nil), rec)
	if err := h.Sweep(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res SweepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Processed != 1 || res.EmailsSent != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_Sweep_BadTimestamp(t *testing.T) {
	h := NewHandler(newFixture().job)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/?at=yesterday", nil), httptest.NewRecorder())
	err := h.Sweep(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Sweep_FetchFailure(t *testing.T) {
	f := newFixture()
	f.schedules.err = errors.New("db down")
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	err := NewHandler(f.job).Sweep(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}
