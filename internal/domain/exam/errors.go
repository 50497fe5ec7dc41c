package exam

import (
	"fmt"
	"strings"
)

// Violation is a single field-level rule failure.
type Violation struct {
	Field   string      `json:"field"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationError lists every violation found in a document. It is returned
// together with the normalized document so callers can persist with warnings.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "exam validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return fmt.Sprintf("exam validation failed (%d violations): %s",
		len(e.Violations), strings.Join(parts, "; "))
}

// StructuralError means the document could not be decoded into an Exam at
// all: invalid JSON, wrong types or unknown fields.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed exam document: %v", e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }
