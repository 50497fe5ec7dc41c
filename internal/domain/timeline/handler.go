package timeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/platform/auth"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Clinical history – veterinarians and technicians
	clinical := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	clinical.GET("/patients/:id/history", h.History)
}

// History handles GET /patients/:id/history. The optional kind parameter is
// a comma-separated list of entry kinds to keep.
func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	keep, err := parseKinds(c.QueryParam("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.agg.BuildHistory(c.Request().Context(), patientID)
	if errors.Is(err, ErrHistoryUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return err
	}
	if keep != nil {
		filtered := make([]Entry, 0, len(report.Entries))
		for _, e := range report.Entries {
			if keep[e.Kind] {
				filtered = append(filtered, e)
			}
		}
		report.Entries = filtered
	}
	return c.JSON(http.StatusOK, report)
}

func parseKinds(param string) (map[Kind]bool, error) {
	if strings.TrimSpace(param) == "" {
		return nil, nil
	}
	keep := make(map[Kind]bool)
	for _, p := range strings.Split(param, ",") {
		k := Kind(strings.ToUpper(strings.TrimSpace(p)))
		if k == "" {
			continue
		}
		if k.priority() == len(Kinds) {
			return nil, errors.New("unknown kind " + string(k))
		}
		keep[k] = true
	}
	return keep, nil
}
