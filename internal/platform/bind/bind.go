// Package bind decodes request bodies and validates them with struct tags.
package bind

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/vetehr/vetehr/internal/platform/middleware"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("visit_priority", validatePriority)
	_ = v.RegisterValidation("not_future", validateNotFuture)
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

func validatePriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "LOW", "MEDIUM", "HIGH":
		return true
	}
	return false
}

// validateNotFuture allows a one minute skew for client clocks.
func validateNotFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return t.IsZero() || !t.After(time.Now().Add(time.Minute))
}

var messages = map[string]string{
	"required":       "is required",
	"uuid":           "must be a UUID",
	"min":            "must be at least %s",
	"max":            "must be at most %s",
	"gt":             "must be greater than %s",
	"gte":            "must be at least %s",
	"lte":            "must be at most %s",
	"oneof":          "must be one of: %s",
	"email":          "must be a valid email",
	"visit_priority": "must be one of: LOW, MEDIUM, HIGH",
	"not_future":     "must not be in the future",
}

// Fields renders validator errors as FieldErrors. Other errors yield nil.
func Fields(err error) []FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		} else if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, strings.Join(strings.Fields(fe.Param()), ", "))
		}
		out = append(out, FieldError{Field: fieldPath(fe.Namespace()), Message: msg})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return ns
}

// Body binds the request into dst and validates it. Failures come back as a
// 400 *echo.HTTPError carrying the field list.
func Body(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		if fields := Fields(err); fields != nil {
			return echo.NewHTTPError(http.StatusBadRequest, middleware.ErrorBody{
				Error:   "request validation failed",
				Details: fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
