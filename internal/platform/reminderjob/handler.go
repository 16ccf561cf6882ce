package reminderjob

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/carenotify/internal/platform/auth"
)

// Handler exposes an on-demand sweep for operators.
type Handler struct {
	job *Job
}

func NewHandler(job *Job) *Handler {
	return &Handler{job: job}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reminders", auth.RequireRole(auth.RoleAdmin))
	g.POST("/sweep", h.Sweep)
}

// Sweep runs one sweep at ?at= (RFC3339) or now.
func (h *Handler) Sweep(c echo.Context) error {
	now := time.Now()
	if raw := c.QueryParam("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "at must be an RFC3339 timestamp")
		}
		now = t
	}
	res, err := h.job.Sweep(c.Request().Context(), now)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
