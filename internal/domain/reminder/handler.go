package reminder

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/platform/auth"
	"github.com/ehr/carenotify/pkg/pagination"
)

// careRoles may manage any patient's schedules.
var careRoles = []string{"physician", "nurse", "pharmacist"}

type Handler struct {
	svc      *Service
	patients directory.PatientUserLookup
}

// NewHandler creates a Handler. patients resolves the owner of a patient
// record for callers holding only the patient role.
func NewHandler(svc *Service, patients directory.PatientUserLookup) *Handler {
	return &Handler{svc: svc, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	member := auth.RequireRole(append([]string{auth.RolePatient}, careRoles...)...)
	api.GET("/reminder-schedules/:id", h.GetSchedule, member)
	api.GET("/reminder-schedules/:id/next-occurrence", h.GetNextOccurrence, member)
	api.GET("/patients/:id/reminder-schedules", h.ListPatientSchedules, member)
	api.POST("/reminder-schedules", h.CreateSchedule, member)
	api.POST("/reminder-schedules/:id/deactivate", h.DeactivateSchedule, member)

	api.POST("/prescriptions/:id/reminder-schedules", h.CreateFromPrescription,
		auth.RequireRole("physician", "pharmacist"))
}

func (h *Handler) authorize(c echo.Context, patientID uuid.UUID) error {
	if err := directory.AuthorizePatient(c.Request().Context(), h.patients, patientID, careRoles...); err != nil {
		return scheduleError(err)
	}
	return nil
}

// owned loads a schedule the caller may act on.
func (h *Handler) owned(c echo.Context, id uuid.UUID) (*Schedule, error) {
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, scheduleError(err)
	}
	if err := h.authorize(c, s.PatientID); err != nil {
		return nil, err
	}
	return s, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func scheduleError(err error) error {
	switch {
	case errors.Is(err, directory.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrScheduleNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "reminder schedule not found")
	case errors.Is(err, directory.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidSchedule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createRequest struct {
	PatientID      uuid.UUID `json:"patient_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	Frequency      Frequency `json:"frequency"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	TimeOfDay      []string  `json:"time_of_day"`
	DaysOfWeek     []string  `json:"days_of_week"`
	Instructions   string    `json:"instructions"`
}

// parseDate accepts a bare date or an RFC 3339 timestamp.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (r createRequest) schedule() (*Schedule, error) {
	s := &Schedule{
		PatientID:      r.PatientID,
		MedicationName: r.MedicationName,
		Dosage:         r.Dosage,
		Frequency:      r.Frequency,
		TimeOfDay:      r.TimeOfDay,
		DaysOfWeek:     r.DaysOfWeek,
		Instructions:   r.Instructions,
	}
	if r.StartDate != "" {
		t, err := parseDate(r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date: %w", err)
		}
		s.StartDate = t
	}
	if r.EndDate != "" {
		t, err := parseDate(r.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date: %w", err)
		}
		s.EndDate = &t
	}
	return s, nil
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := req.schedule()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.PatientID != uuid.Nil {
		if err := h.authorize(c, s.PatientID); err != nil {
			return err
		}
	}
	if err := h.svc.Create(c.Request().Context(), s); err != nil {
		return scheduleError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.owned(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetNextOccurrence(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.owned(c, id); err != nil {
		return err
	}
	s, occ, err := h.svc.NextOccurrence(c.Request().Context(), id)
	if err != nil {
		return scheduleError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"schedule_id": s.ID,
		"next":        occ,
		"days":        DaysLabel(s),
		"date_range":  DateRangeLabel(s),
	})
}

func (h *Handler) DeactivateSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.owned(c, id); err != nil {
		return err
	}
	s, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return scheduleError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListPatientSchedules(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return scheduleError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateFromPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.CreateFromPrescription(c.Request().Context(), id)
	if err != nil {
		return scheduleError(err)
	}
	return c.JSON(http.StatusCreated, items)
}
