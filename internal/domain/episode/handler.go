package episode

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/domain/exam"
	"github.com/vetehr/vetehr/internal/platform/auth"
	"github.com/vetehr/vetehr/internal/platform/bind"
	"github.com/vetehr/vetehr/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := []string{auth.RoleVeterinarian, auth.RoleTechnician, auth.RoleReceptionist}

	// Read endpoints – all clinic staff
	read := api.Group("", auth.RequireRole(staff...))
	read.GET("/visits/active", h.ListActiveVisits)
	read.GET("/visits/:id", h.GetVisit)
	read.GET("/visits/:id/history", h.GetVisitHistory)
	read.GET("/consultations/:id", h.GetConsultation)

	// Front desk – check-in, cancel, discharge
	desk := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleVeterinarian))
	desk.POST("/visits", h.CheckIn)
	desk.POST("/visits/:id/cancel", h.Cancel)
	desk.POST("/visits/:id/discharge", h.Discharge)

	// Triage – technicians and veterinarians
	triage := api.Group("", auth.RequireRole(auth.RoleTechnician, auth.RoleVeterinarian))
	triage.POST("/visits/:id/triage", h.CompleteTriage)
	triage.PATCH("/visits/:id/priority", h.UpdatePriority)
	triage.POST("/consultations/:id/vital-signs", h.RecordVitalSigns)

	// Clinical – veterinarians
	vet := api.Group("", auth.RequireRole(auth.RoleVeterinarian))
	vet.POST("/visits/:id/consultation", h.StartConsultation)
	vet.POST("/visits/:id/studies", h.OrderStudies)
	vet.POST("/visits/:id/studies/resume", h.ResumeFromStudies)
	vet.POST("/visits/:id/consultation/complete", h.CompleteConsultation)
	vet.POST("/visits/:id/hospitalize", h.Hospitalize)
	vet.POST("/consultations/:id/diagnoses", h.AddDiagnosis)
	vet.POST("/consultations/:id/prescriptions", h.AddPrescription)
	vet.POST("/consultations/:id/lab-requests", h.AddLabRequest)
	vet.PUT("/consultations/:id/physical-exam", h.RecordPhysicalExam)
}

// -- Request bodies --

type checkInRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

type vitalsRequest struct {
	WeightKg     *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=1000"`
	TemperatureC *float64 `json:"temperature_c" validate:"omitempty,gte=30,lte=45"`
}

type triageRequest struct {
	Reason   string         `json:"reason" validate:"required,max=2000"`
	Priority string         `json:"priority" validate:"required,visit_priority"`
	Vitals   *vitalsRequest `json:"vitals"`
}

type priorityRequest struct {
	Priority string `json:"priority" validate:"required,visit_priority"`
}

type startConsultationRequest struct {
	DoctorID string `json:"doctor_id" validate:"omitempty,max=128"`
}

type hospitalizeRequest struct {
	Reason      string `json:"reason" validate:"required,max=2000"`
	Location    string `json:"location" validate:"required,max=200"`
	SpecialCare string `json:"special_care" validate:"max=4000"`
	AttendingID string `json:"attending_id" validate:"omitempty,max=128"`
}

type dischargeRequest struct {
	Method    string  `json:"method" validate:"required,oneof=CASH CARD TRANSFER INSURANCE WAIVED"`
	Amount    float64 `json:"amount" validate:"gte=0"`
	Currency  string  `json:"currency" validate:"omitempty,len=3"`
	Reference string  `json:"reference" validate:"max=200"`
	Notes     string  `json:"notes" validate:"max=2000"`
}

type diagnosisRequest struct {
	Code        string `json:"code" validate:"max=64"`
	Description string `json:"description" validate:"required,max=2000"`
	Kind        string `json:"kind" validate:"omitempty,oneof=PRESUMPTIVE DEFINITIVE"`
	Notes       string `json:"notes" validate:"max=4000"`
}

type vitalSignsRequest struct {
	RecordedAt      time.Time `json:"recorded_at" validate:"not_future"`
	WeightKg        *float64  `json:"weight_kg" validate:"omitempty,gt=0,lte=1000"`
	TemperatureC    *float64  `json:"temperature_c" validate:"omitempty,gte=30,lte=45"`
	HeartRate       *int      `json:"heart_rate" validate:"omitempty,gte=20,lte=400"`
	RespiratoryRate *int      `json:"respiratory_rate" validate:"omitempty,gte=4,lte=200"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

type prescriptionItemRequest struct {
	MedicationID   string `json:"medication_id" validate:"required,max=128"`
	MedicationName string `json:"medication_name" validate:"max=200"`
	Dose           string `json:"dose" validate:"required,max=200"`
	Frequency      string `json:"frequency" validate:"required,max=200"`
	Route          string `json:"route" validate:"max=64"`
	DurationDays   *int   `json:"duration_days" validate:"omitempty,gt=0"`
	Instructions   string `json:"instructions" validate:"max=2000"`
}

type prescriptionRequest struct {
	Notes string                    `json:"notes" validate:"max=2000"`
	Items []prescriptionItemRequest `json:"items" validate:"required,min=1,dive"`
}

type labRequestRequest struct {
	TestCode string `json:"test_code" validate:"required,max=128"`
	TestName string `json:"test_name" validate:"max=200"`
	Urgent   bool   `json:"urgent"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// physicalExamResponse carries the stored consultation and any violations
// that did not block storage.
type physicalExamResponse struct {
	Consultation *Consultation    `json:"consultation"`
	Violations   []exam.Violation `json:"violations"`
}

// -- Visit handlers --

func (h *Handler) CheckIn(c echo.Context) error {
	var req checkInRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	v, err := h.svc.CheckIn(c.Request().Context(), uuid.MustParse(req.PatientID))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListActiveVisits(c echo.Context) error {
	visits, err := h.svc.ListActiveVisits(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if visits == nil {
		visits = []*Visit{}
	}
	return c.JSON(http.StatusOK, visits)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetVisitHistory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	history, err := h.svc.VisitHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if history == nil {
		history = []*StatusHistory{}
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) CompleteTriage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req triageRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	t := Triage{Reason: req.Reason, Priority: Priority(req.Priority)}
	if req.Vitals != nil {
		t.Vitals = &Vitals{WeightKg: req.Vitals.WeightKg, TemperatureC: req.Vitals.TemperatureC}
	}
	v, err := h.svc.CompleteTriage(c.Request().Context(), id, t)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdatePriority(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req priorityRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	v, err := h.svc.UpdatePriority(c.Request().Context(), id, Priority(req.Priority))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// StartConsultation defaults the doctor to the caller.
func (h *Handler) StartConsultation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req startConsultationRequest
	if c.Request().ContentLength != 0 {
		if err := bind.Body(c, &req); err != nil {
			return err
		}
	}
	doctorID := req.DoctorID
	if doctorID == "" {
		doctorID = auth.UserIDFromContext(c.Request().Context())
	}
	cons, err := h.svc.StartConsultation(c.Request().Context(), id, doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) OrderStudies(c echo.Context) error {
	return h.simpleTransition(c, h.svc.OrderStudies)
}

func (h *Handler) ResumeFromStudies(c echo.Context) error {
	return h.simpleTransition(c, h.svc.ResumeFromStudies)
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	return h.simpleTransition(c, h.svc.CompleteConsultation)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.simpleTransition(c, h.svc.Cancel)
}

func (h *Handler) Hospitalize(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req hospitalizeRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Hospitalize(c.Request().Context(), id, Admission{
		Reason:      req.Reason,
		Location:    req.Location,
		SpecialCare: req.SpecialCare,
		AttendingID: req.AttendingID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dischargeRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Discharge(c.Request().Context(), id, PaymentSummary(req))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) simpleTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Visit, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Consultation handlers --

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cons, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req diagnosisRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	d := Diagnosis{Code: req.Code, Description: req.Description, Kind: req.Kind, Notes: req.Notes}
	if err := h.svc.AddDiagnosis(c.Request().Context(), id, &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) RecordVitalSigns(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req vitalSignsRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	vs := VitalSigns{
		RecordedAt:      req.RecordedAt,
		WeightKg:        req.WeightKg,
		TemperatureC:    req.TemperatureC,
		HeartRate:       req.HeartRate,
		RespiratoryRate: req.RespiratoryRate,
		Notes:           req.Notes,
	}
	if err := h.svc.RecordVitalSigns(c.Request().Context(), id, &vs); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, vs)
}

func (h *Handler) AddPrescription(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req prescriptionRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	p := Prescription{Notes: req.Notes}
	for _, it := range req.Items {
		p.Items = append(p.Items, PrescriptionItem{
			MedicationID:   it.MedicationID,
			MedicationName: it.MedicationName,
			Dose:           it.Dose,
			Frequency:      it.Frequency,
			Route:          it.Route,
			DurationDays:   it.DurationDays,
			Instructions:   it.Instructions,
		})
	}
	if err := h.svc.AddPrescription(c.Request().Context(), id, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) AddLabRequest(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req labRequestRequest
	if err := bind.Body(c, &req); err != nil {
		return err
	}
	l := LabRequest{TestCode: req.TestCode, TestName: req.TestName, Urgent: req.Urgent, Notes: req.Notes}
	if err := h.svc.AddLabRequest(c.Request().Context(), id, &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

// RecordPhysicalExam takes the exam document as the raw request body.
func (h *Handler) RecordPhysicalExam(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	raw, err := exam.ReadDocument(c.Request().Body)
	if errors.Is(err, exam.ErrDocumentTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cons, err := h.svc.RecordPhysicalExam(c.Request().Context(), id, raw)
	var verr *exam.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return httpError(err)
	}
	resp := physicalExamResponse{Consultation: cons, Violations: []exam.Violation{}}
	if verr != nil {
		resp.Violations = verr.Violations
	}
	return c.JSON(http.StatusOK, resp)
}

// -- Helpers --

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// httpError maps service errors onto HTTP statuses. Unknown errors pass
// through and are rendered as 500 by the error handler.
func httpError(err error) error {
	var ite *InvalidTransitionError
	var serr *exam.StructuralError
	switch {
	case errors.As(err, &ite):
		return echo.NewHTTPError(http.StatusConflict, middleware.ErrorBody{
			Error: ite.Error(),
			Details: map[string]interface{}{
				"operation": ite.Op,
				"required":  ite.Required,
				"actual":    ite.Actual,
			},
		})
	case errors.Is(err, ErrDuplicateActiveVisit), errors.Is(err, ErrConsultationClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.As(err, &serr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
