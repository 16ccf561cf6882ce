package notification

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/domain/vitals"
	"github.com/ehr/carenotify/internal/platform/auth"
	"github.com/ehr/carenotify/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Current user's inbox
	api.GET("/notifications", h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.GET("/notifications/:id", h.Get)
	api.POST("/notifications/:id/read", h.MarkRead)
	api.POST("/notifications/read-all", h.MarkAllRead)

	api.POST("/patients/:id/vitals/check", h.CheckVitals,
		auth.RequireRole(append([]string{auth.RolePatient}, vitalsRoles...)...))

	// Domain events raised by the clinical application
	events := api.Group("/events", auth.RequireRole("service"))
	events.POST("/prescriptions/:id/created", h.PrescriptionCreated)
	events.POST("/appointments/:id/created", h.AppointmentCreated)
	events.POST("/appointments/:id/status", h.AppointmentStatusChanged)
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "user identity is not a valid id")
	}
	return uid, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func readError(err error) error {
	switch {
	case errors.Is(err, ErrNotificationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	case errors.Is(err, ErrNotRecipient):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByUser(c.Request().Context(), uid, pg.Limit, pg.Offset)
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), uid)
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) Get(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return readError(err)
	}
	if n.RecipientUserID != uid {
		return readError(ErrNotificationNotFound)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkRead(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), id, &uid)
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), uid)
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

// -- Dispatch endpoints --

// dispatchResult applies Degrade: a not-found on the triggering entity is a
// 404, anything else is logged and reported as not dispatched.
func (h *Handler) dispatchResult(c echo.Context, event string, n *Notification, err error) error {
	if err != nil {
		if Degrade(err) != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		h.logger.Warn().Err(err).Str("event", event).Str("id", c.Param("id")).Msg("notification dispatch failed")
	}
	resp := map[string]interface{}{"dispatched": err == nil}
	if n != nil {
		resp["notification_id"] = n.ID
	}
	return c.JSON(http.StatusAccepted, resp)
}

// vitalsRoles may submit readings for any patient.
var vitalsRoles = []string{"physician", "nurse", "service"}

func (h *Handler) CheckVitals(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	if err := directory.AuthorizePatient(c.Request().Context(), h.svc.dir, patientID, vitalsRoles...); err != nil {
		if errors.Is(err, directory.ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var signs vitals.Signs
	if err := c.Bind(&signs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alerts, err := h.svc.DispatchVitalsCheck(c.Request().Context(), patientID, signs)
	if err != nil {
		if Degrade(err) != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		h.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("vitals alert dispatch failed")
	}
	if alerts == nil {
		alerts = []vitals.Alert{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *Handler) PrescriptionCreated(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.DispatchPrescriptionCreated(c.Request().Context(), id)
	return h.dispatchResult(c, "prescription_created", n, err)
}

func (h *Handler) AppointmentCreated(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.DispatchAppointmentCreated(c.Request().Context(), id)
	return h.dispatchResult(c, "appointment_created", n, err)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) AppointmentStatusChanged(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	n, err := h.svc.DispatchAppointmentStatusChanged(c.Request().Context(), id, req.Status)
	return h.dispatchResult(c, "appointment_status_changed", n, err)
}
