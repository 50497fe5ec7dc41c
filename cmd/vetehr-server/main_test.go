package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetehr/vetehr/internal/config"
	"github.com/vetehr/vetehr/internal/platform/db"
	"github.com/vetehr/vetehr/internal/platform/events"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "development",
		CORSOrigins:            []string{"http://localhost:3000"},
		RateLimitRPS:           100,
		RateLimitBurst:         200,
		RequestTimeout:         30 * time.Second,
		HistorySourceTimeout:   5 * time.Second,
		HistoryMonitoringLimit: 3,
		PatientCacheTTL:        time.Minute,
	}
}

func TestValidateExam(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
		wantOut string
	}{
		{"valid", `{"general":{"temperature":38.5}}`, "", `"violations": []`},
		{"violations", `{"general":{"body_condition_score":0}}`, "1 violation(s) found", "general.body_condition_score"},
		{"malformed", `{"general":`, "malformed exam document", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := validateExam(&out, strings.NewReader(tt.doc))
			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("expected output containing %q, got %s", tt.wantOut, out.String())
			}
		})
	}
}

func TestExamValidateCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exam.json")
	if err := os.WriteFile(path, []byte(`{"general":{"ears":["cerumen"]}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"exam", "validate", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"cerumen"`) {
		t.Errorf("expected normalized document in output, got %s", out.String())
	}
}

func TestHistoryCommand_RejectsBadID(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"history", "not-a-uuid"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "invalid patient id") {
		t.Errorf("expected invalid patient id error, got %v", err)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStatus(&out, []db.MigrationStatus{
		{Version: 1, Name: "001_directory.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_visits.sql"},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and two rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2024-06-01 08:30:00") {
		t.Errorf("unexpected applied row %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("unexpected pending row %q", lines[3])
	}
}

func TestNewEcho_Routes(t *testing.T) {
	svc := newServices(nil, testConfig(), zerolog.Nop(), nil, events.Nop{})
	e, _ := newEcho(testConfig(), zerolog.Nop(), svc)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/visits",
		"GET /api/v1/visits/active",
		"POST /api/v1/visits/:id/consultation",
		"PUT /api/v1/consultations/:id/physical-exam",
		"POST /api/v1/hospitalizations/:id/monitoring",
		"POST /api/v1/surgeries/:id/complete",
		"GET /api/v1/vaccinations/due",
		"GET /api/v1/patients/:id",
		"GET /api/v1/patients/:id/history",
		"POST /api/v1/exams/validate",
		"GET /health/live",
	} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestAuthMiddleware_HMACRejectsMissingToken(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.JWTSigningKey = strings.Repeat("k", 32)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/visits/active", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/visits/active")
	err := authMiddleware(cfg)(func(c echo.Context) error { return nil })(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/health/live", nil), httptest.NewRecorder())
	c.SetPath("/health/live")
	if err := authMiddleware(cfg)(func(c echo.Context) error { return nil })(c); err != nil {
		t.Errorf("expected public path to skip auth, got %v", err)
	}
}

func TestAuthMiddleware_Development(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User", "vet-9")
	c := e.NewContext(req, httptest.NewRecorder())

	var user string
	err := authMiddleware(testConfig())(func(c echo.Context) error {
		user, _ = c.Get("user_id").(string)
		return nil
	})(c)
	if err != nil || user != "vet-9" {
		t.Errorf("expected dev principal vet-9, got %q (%v)", user, err)
	}
}
