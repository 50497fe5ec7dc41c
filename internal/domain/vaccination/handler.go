package vaccination

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
	read.GET("/vaccinations/due", h.ListDue)
	read.GET("/vaccinations/:id", h.Get)
	read.GET("/patients/:id/vaccinations", h.ListByPatient)

	// Write endpoints – veterinarians
	write := api.Group("", auth.RequireRole(auth.RoleVeterinarian))
	write.POST("/vaccinations", h.Record)
	write.POST("/vaccinations/:id/entered-in-error", h.MarkEnteredInError)
}

type recordRequest struct {
	PatientID          string     `json:"patient_id" validate:"required,uuid"`
	VisitID            *uuid.UUID `json:"visit_id"`
	VeterinarianID     string     `json:"veterinarian_id" validate:"omitempty,max=128"`
	VaccineName        string     `json:"vaccine_name" validate:"required,max=200"`
	Manufacturer       string     `json:"manufacturer" validate:"max=200"`
	LotNumber          string     `json:"lot_number" validate:"max=64"`
	Route              string     `json:"route" validate:"omitempty,oneof=SC IM IN ORAL"`
	AdministrationDate time.Time  `json:"administration_date" validate:"not_future"`
	NextDoseDue        *time.Time `json:"next_dose_due"`
	Notes              string     `json:"notes" validate:"max=2000"`
}

func (h *Handler) Record(c echo.Context) error {
	var req recordRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	v := Vaccination{
		PatientID:          uuid.MustParse(req.PatientID),
		VisitID:            req.VisitID,
		VeterinarianID:     req.VeterinarianID,
		VaccineName:        req.VaccineName,
		Manufacturer:       req.Manufacturer,
		LotNumber:          req.LotNumber,
		Route:              req.Route,
		AdministrationDate: req.AdministrationDate,
		NextDoseDue:        req.NextDoseDue,
		Notes:              req.Notes,
	}
	if v.VeterinarianID == "" {
		v.VeterinarianID = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.Record(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
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
		items = []*Vaccination{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ListDue takes an optional ?on=YYYY-MM-DD, defaulting to today.
func (h *Handler) ListDue(c echo.Context) error {
	var day time.Time
	if on := c.QueryParam("on"); on != "" {
		d, err := time.Parse(time.DateOnly, on)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "on must be YYYY-MM-DD")
		}
		day = d.Add(24*time.Hour - time.Nanosecond)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDue(c.Request().Context(), day, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Vaccination{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkEnteredInError(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.MarkEnteredInError(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
