package vaccination

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCompleted      Status = "COMPLETED"
	StatusEnteredInError Status = "ENTERED_IN_ERROR"
)

var (
	ErrNotFound     = errors.New("vaccination not found")
	ErrInvalidInput = errors.New("invalid vaccination input")
)

// Vaccination maps to the vaccination table.
type Vaccination struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	VisitID            *uuid.UUID `json:"visit_id,omitempty"`
	VeterinarianID     string     `json:"veterinarian_id"`
	VaccineName        string     `json:"vaccine_name"`
	Manufacturer       string     `json:"manufacturer,omitempty"`
	LotNumber          string     `json:"lot_number,omitempty"`
	Route              string     `json:"route,omitempty"`
	AdministrationDate time.Time  `json:"administration_date"`
	NextDoseDue        *time.Time `json:"next_dose_due,omitempty"`
	Status             Status     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Due reports whether a follow-up dose is due on or before day.
func (v *Vaccination) Due(day time.Time) bool {
	return v.Status == StatusCompleted && v.NextDoseDue != nil && !v.NextDoseDue.After(day)
}
