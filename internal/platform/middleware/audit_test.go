package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetehr/vetehr/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func auditRequest(t *testing.T, rec AuditRecorder, method, target string, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), "vet-1", []string{auth.RoleVeterinarian}))
	w := httptest.NewRecorder()
	c := e.NewContext(req, w)
	c.Set("request_id", "req-1")
	return w, Audit(zerolog.Nop(), rec)(h)(c)
}

func TestAudit_PatientHistoryRead(t *testing.T) {
	rec := &mockRecorder{}
	pid := uuid.NewString()
	_, err := auditRequest(t, rec, http.MethodGet, "/api/v1/patients/"+pid+"/history", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	got := rec.entries[0]
	if got.Resource != "patients" || got.ResourceID != pid || got.PatientID != pid {
		t.Errorf("unexpected resource fields %+v", got)
	}
	if got.Action != "read" || got.UserID != "vet-1" || got.RequestID != "req-1" || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestAudit_ErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	visitID := uuid.NewString()
	_, err := auditRequest(t, rec, http.MethodPut, "/api/v1/visits/"+visitID+"/status", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "illegal transition")
	})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	got := rec.entries[0]
	if got.StatusCode != http.StatusConflict || got.Action != "update" || got.ResourceID != visitID {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.PatientID != "" {
		t.Errorf("expected no patient id, got %q", got.PatientID)
	}
}

func TestAudit_PatientIDFromQuery(t *testing.T) {
	rec := &mockRecorder{}
	pid := uuid.NewString()
	_, _ = auditRequest(t, rec, http.MethodGet, "/api/v1/vaccinations?patient_id="+pid, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if rec.entries[0].PatientID != pid {
		t.Errorf("expected patient id from query, got %q", rec.entries[0].PatientID)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	rec := &mockRecorder{}
	_, _ = auditRequest(t, rec, http.MethodGet, "/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if rec.count() != 0 {
		t.Errorf("expected no audit entry, got %d", rec.count())
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("broker down")}
	w, err := auditRequest(t, rec, http.MethodPost, "/api/v1/surgeries", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	if err != nil || w.Code != http.StatusCreated {
		t.Errorf("expected 201 and no error, got %d %v", w.Code, err)
	}
}

func TestAudit_NilRecorder(t *testing.T) {
	_, err := auditRequest(t, nil, http.MethodDelete, "/api/v1/surgeries/"+uuid.NewString(), func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestResourceFromPath(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		path, resource, id string
	}{
		{"/api/v1/visits", "visits", ""},
		{"/api/v1/visits/" + id, "visits", id},
		{"/api/v1/exams/validate", "exams", ""},
		{"/api/v1/", "unknown", ""},
	}
	for _, tt := range tests {
		r, rid := resourceFromPath(tt.path)
		if r != tt.resource || rid != tt.id {
			t.Errorf("%s: got (%s, %s)", tt.path, r, rid)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("%s: got %s, want %s", method, got, want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	called := false
	f := AuditRecorderFunc(func(AuditEntry) error { called = true; return nil })
	_ = f.RecordAccess(AuditEntry{})
	if !called {
		t.Error("expected function to be called")
	}
}
