package hospitalization

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusDischarged Status = "DISCHARGED"
)

var (
	ErrNotFound           = errors.New("hospitalization not found")
	ErrAlreadyDischarged  = errors.New("hospitalization already discharged")
	ErrDuplicateAdmission = errors.New("visit already has a hospitalization")
	ErrInvalidInput       = errors.New("invalid hospitalization input")
)

// Hospitalization maps to the hospitalization table. One per visit at most.
type Hospitalization struct {
	ID             uuid.UUID    `json:"id"`
	VisitID        uuid.UUID    `json:"visit_id"`
	PatientID      uuid.UUID    `json:"patient_id"`
	AttendingID    string       `json:"attending_id"`
	Reason         string       `json:"reason"`
	Location       string       `json:"location"`
	SpecialCare    string       `json:"special_care,omitempty"`
	AdmittedAt     time.Time    `json:"admitted_at"`
	Status         Status       `json:"status"`
	DischargedAt   *time.Time   `json:"discharged_at,omitempty"`
	DischargeNotes string       `json:"discharge_notes,omitempty"`
	Monitoring     []Monitoring `json:"monitoring"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Monitoring maps to the hospitalization_monitoring table.
type Monitoring struct {
	ID                uuid.UUID `json:"id"`
	HospitalizationID uuid.UUID `json:"hospitalization_id"`
	RecordedAt        time.Time `json:"recorded_at"`
	TemperatureC      *float64  `json:"temperature_c,omitempty"`
	HeartRate         *int      `json:"heart_rate,omitempty"`
	RespiratoryRate   *int      `json:"respiratory_rate,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	RecordedBy        string    `json:"recorded_by"`
}

// Latest returns up to n readings, most recent first.
func (h *Hospitalization) Latest(n int) []Monitoring {
	out := make([]Monitoring, len(h.Monitoring))
	copy(out, h.Monitoring)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
