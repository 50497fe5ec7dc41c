package timeline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/domain/surgery"
	"github.com/vetehr/vetehr/internal/domain/vaccination"
)

func historyContext(e *echo.Echo, target, id string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestHandler_History(t *testing.T) {
	src := newSources()
	src.s.items = []*surgery.Surgery{{ID: uuid.New(), ProcedureName: "Enucleation", ScheduledDate: day}}
	src.v.items = []*vaccination.Vaccination{{ID: uuid.New(), VaccineName: "Rabies", AdministrationDate: day}}
	h := NewHandler(src.aggregator())

	c, rec := historyContext(echo.New(), "/?kind=vaccination", uuid.NewString())
	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Entries []struct {
			Kind    Kind   `json:"kind"`
			Summary string `json:"summary"`
		} `json:"entries"`
		Partial bool `json:"partial"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Kind != KindVaccination {
		t.Errorf("expected only the vaccination entry, got %+v", body.Entries)
	}
}

func TestHandler_History_Unavailable(t *testing.T) {
	src := newSources()
	boom := errors.New("down")
	src.c.err, src.h.err, src.s.err, src.v.err = boom, boom, boom, boom
	h := NewHandler(src.aggregator())

	c, _ := historyContext(echo.New(), "/", uuid.NewString())
	var he *echo.HTTPError
	if err := h.History(c); !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}
}

func TestHandler_History_BadInput(t *testing.T) {
	h := NewHandler(newSources().aggregator())
	e := echo.New()

	tests := []struct {
		name, target, id string
	}{
		{"bad id", "/", "not-a-uuid"},
		{"unknown kind", "/?kind=grooming", uuid.NewString()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := historyContext(e, tt.target, tt.id)
			var he *echo.HTTPError
			if err := h.History(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}
