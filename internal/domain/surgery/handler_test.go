package surgery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/platform/auth"
	"github.com/vetehr/vetehr/internal/platform/bind"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	e.Validator = bind.NewValidator()
	return h, e
}

func TestHandler_Schedule(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","procedure_name":"Dental extraction","anesthesia_type":"GENERAL","scheduled_date":"2024-06-01T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/surgeries", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithPrincipal(req.Context(), "vet-9", []string{auth.RoleVeterinarian}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Schedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var sg Surgery
	json.Unmarshal(rec.Body.Bytes(), &sg)
	if sg.SurgeonID != "vet-9" {
		t.Errorf("expected surgeon defaulted to caller, got %q", sg.SurgeonID)
	}
}

func TestHandler_Schedule_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/surgeries", strings.NewReader(`{"procedure_name":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var he *echo.HTTPError
	if err := h.Schedule(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Complete_Conflict(t *testing.T) {
	h, e := newTestHandler()
	sg := newSurgery()
	h.svc.Schedule(context.Background(), sg)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(sg.ID.String())

	var he *echo.HTTPError
	if err := h.Complete(c); !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	var he *echo.HTTPError
	if err := h.Get(c); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListByPatient(t *testing.T) {
	h, e := newTestHandler()
	sg := newSurgery()
	h.svc.Schedule(context.Background(), sg)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(sg.PatientID.String())

	if err := h.ListByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected total 1, got %s", rec.Body.String())
	}
}
