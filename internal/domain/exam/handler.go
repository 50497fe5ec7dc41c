package exam

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/platform/auth"
)

// MaxDocumentBytes bounds an uploaded exam document.
const MaxDocumentBytes = 256 << 10

var ErrDocumentTooLarge = fmt.Errorf("exam document exceeds %d bytes", MaxDocumentBytes)

// ReadDocument reads at most MaxDocumentBytes from r.
func ReadDocument(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}
	return raw, nil
}

// Handler exposes validation without persisting anything.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	clinical.POST("/exams/validate", h.Validate)
	clinical.GET("/exams/vocabularies", h.Vocabularies)
}

type validateResponse struct {
	Exam       *Exam       `json:"exam"`
	Violations []Violation `json:"violations"`
}

// Validate handles POST /exams/validate. A document with violations is
// answered with 422 and its normalized form.
func (h *Handler) Validate(c echo.Context) error {
	raw, err := ReadDocument(c.Request().Body)
	if errors.Is(err, ErrDocumentTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	doc, err := ValidateDocument(raw)
	var serr *StructuralError
	if errors.As(err, &serr) {
		return echo.NewHTTPError(http.StatusBadRequest, serr.Error())
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, validateResponse{Exam: doc, Violations: verr.Violations})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, validateResponse{Exam: doc, Violations: []Violation{}})
}

// Vocabularies handles GET /exams/vocabularies.
func (h *Handler) Vocabularies(c echo.Context) error {
	out := make(map[string][]string, len(vocabularies))
	for _, v := range vocabularies {
		out[v.Name()] = v.Values()
	}
	return c.JSON(http.StatusOK, out)
}
