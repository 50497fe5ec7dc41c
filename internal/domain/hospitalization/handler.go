package hospitalization

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/platform/auth"
	"github.com/vetehr/vetehr/internal/platform/bind"
	"github.com/vetehr/vetehr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all clinic staff
	read := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician, auth.RoleReceptionist))
	read.GET("/hospitalizations/:id", h.Get)
	read.GET("/patients/:id/hospitalizations", h.ListByPatient)

	// Ward endpoints – veterinarians and technicians
	ward := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	ward.POST("/hospitalizations/:id/monitoring", h.AddMonitoring)

	vet := api.Group("", auth.RequireRole(auth.RoleVeterinarian))
	vet.POST("/hospitalizations/:id/discharge", h.Discharge)
}

type monitoringRequest struct {
	RecordedAt      time.Time `json:"recorded_at" validate:"not_future"`
	TemperatureC    *float64  `json:"temperature_c" validate:"omitempty,gte=30,lte=45"`
	HeartRate       *int      `json:"heart_rate" validate:"omitempty,gte=20,lte=400"`
	RespiratoryRate *int      `json:"respiratory_rate" validate:"omitempty,gte=4,lte=200"`
	Notes           string    `json:"notes" validate:"max=4000"`
}

type dischargeRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hosp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Hospitalization{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddMonitoring(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req monitoringRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	m := Monitoring{
		RecordedAt:      req.RecordedAt,
		TemperatureC:    req.TemperatureC,
		HeartRate:       req.HeartRate,
		RespiratoryRate: req.RespiratoryRate,
		Notes:           req.Notes,
	}
	if err := h.svc.AddMonitoring(c.Request().Context(), id, &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req dischargeRequest
	if c.Request().ContentLength != 0 {
		if err := bind.Body(c, &req); err != nil {
			return err
		}
	}
	hosp, err := h.svc.Discharge(c.Request().Context(), id, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyDischarged), errors.Is(err, ErrDuplicateAdmission):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
