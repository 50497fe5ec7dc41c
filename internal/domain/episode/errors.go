package episode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition    = errors.New("invalid visit transition")
	ErrDuplicateActiveVisit = errors.New("patient already has an active visit")
	ErrNotFound             = errors.New("not found")
	ErrConsultationClosed   = errors.New("consultation is not in progress")
	ErrInvalidInput         = errors.New("invalid input")
)

// InvalidTransitionError names the operation, the statuses it requires and
// the status the visit was actually in. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	Op       string
	Required []Status
	Actual   Status
}

func (e *InvalidTransitionError) Error() string {
	req := make([]string, len(e.Required))
	for i, s := range e.Required {
		req[i] = string(s)
	}
	return fmt.Sprintf("%s: visit is %s, requires %s", e.Op, e.Actual, strings.Join(req, " or "))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
