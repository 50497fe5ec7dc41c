package surgery

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
	read.GET("/surgeries/:id", h.Get)
	read.GET("/patients/:id/surgeries", h.ListByPatient)

	// Write endpoints – veterinarians
	write := api.Group("", auth.RequireRole(auth.RoleVeterinarian))
	write.POST("/surgeries", h.Schedule)
	write.POST("/surgeries/:id/start", h.Start)
	write.POST("/surgeries/:id/complete", h.Complete)
	write.POST("/surgeries/:id/cancel", h.Cancel)
}

type scheduleRequest struct {
	PatientID       string     `json:"patient_id" validate:"required,uuid"`
	VisitID         *uuid.UUID `json:"visit_id"`
	SurgeonID       string     `json:"surgeon_id" validate:"omitempty,max=128"`
	ProcedureName   string     `json:"procedure_name" validate:"required,max=300"`
	AnesthesiaType  string     `json:"anesthesia_type" validate:"omitempty,oneof=GENERAL SEDATION LOCAL REGIONAL NONE"`
	ScheduledDate   time.Time  `json:"scheduled_date" validate:"required"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
	PreOpNotes      string     `json:"pre_op_notes" validate:"max=4000"`
}

type completeRequest struct {
	PostOpNotes     string `json:"post_op_notes" validate:"max=4000"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// Schedule defaults the surgeon to the caller.
func (h *Handler) Schedule(c echo.Context) error {
	var req scheduleRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	sg := Surgery{
		PatientID:       uuid.MustParse(req.PatientID),
		VisitID:         req.VisitID,
		SurgeonID:       req.SurgeonID,
		ProcedureName:   req.ProcedureName,
		AnesthesiaType:  req.AnesthesiaType,
		ScheduledDate:   req.ScheduledDate,
		DurationMinutes: req.DurationMinutes,
		PreOpNotes:      req.PreOpNotes,
	}
	if sg.SurgeonID == "" {
		sg.SurgeonID = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.Schedule(c.Request().Context(), &sg); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sg)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sg, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sg)
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
		items = []*Surgery{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Start(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sg, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sg)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req completeRequest
	if c.Request().ContentLength != 0 {
		if err := bind.Body(c, &req); err != nil {
			return err
		}
	}
	sg, err := h.svc.Complete(c.Request().Context(), id, req.PostOpNotes, req.DurationMinutes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sg)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	sg, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sg)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
