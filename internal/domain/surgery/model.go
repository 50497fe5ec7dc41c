package surgery

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether a surgery may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var AnesthesiaTypes = []string{"GENERAL", "SEDATION", "LOCAL", "REGIONAL", "NONE"}

var (
	ErrNotFound          = errors.New("surgery not found")
	ErrInvalidInput      = errors.New("invalid surgery input")
	ErrStatusConflict    = errors.New("surgery status changed concurrently")
	ErrInvalidTransition = errors.New("surgery status transition not allowed")
)

// Surgery maps to the surgery table.
type Surgery struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	VisitID         *uuid.UUID `json:"visit_id,omitempty"`
	SurgeonID       string     `json:"surgeon_id"`
	ProcedureName   string     `json:"procedure_name"`
	AnesthesiaType  string     `json:"anesthesia_type,omitempty"`
	ScheduledDate   time.Time  `json:"scheduled_date"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          Status     `json:"status"`
	PreOpNotes      string     `json:"pre_op_notes,omitempty"`
	PostOpNotes     string     `json:"post_op_notes,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
