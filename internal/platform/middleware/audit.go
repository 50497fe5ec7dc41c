package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetehr/vetehr/internal/platform/auth"
)

// AuditEntry records who touched which clinical resource and how.
type AuditEntry struct {
	UserID     string    `json:"user_id"`
	UserRoles  []string  `json:"user_roles"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	PatientID  string    `json:"patient_id,omitempty"`
	Action     string    `json:"action"` // read, create, update, delete
	IPAddress  string    `json:"ip_address"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	StatusCode int       `json:"status_code"`
}

// AuditRecorder persists or forwards audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /api/v1/ after the handler runs. A recorder,
// when given, also receives the entry; its failures are logged and never fail
// the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			resource, resourceID := resourceFromPath(path)
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: status,
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
				Action:     httpMethodToAction(req.Method),
				Resource:   resource,
				ResourceID: resourceID,
				PatientID:  patientID(c, resource, resourceID),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "clinical_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

const apiPrefix = "/api/v1/"

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, apiPrefix)
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath returns the first segment after /api/v1/ and, when the
// second segment is a UUID, that id.
//
//	/api/v1/visits                      -> visits, ""
//	/api/v1/patients/<id>/history       -> patients, <id>
func resourceFromPath(path string) (string, string) {
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 && isUUID(segments[1]) {
		return segments[0], segments[1]
	}
	return segments[0], ""
}

// patientID finds the patient the request concerns: the path id under
// /patients, otherwise a patient_id query parameter.
func patientID(c echo.Context, resource, resourceID string) string {
	if resource == "patients" && resourceID != "" {
		return resourceID
	}
	if p := c.QueryParam("patient_id"); isUUID(p) {
		return p
	}
	return ""
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
