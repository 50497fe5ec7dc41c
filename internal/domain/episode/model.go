package episode

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Visit lifecycle state.
type Status string

const (
	StatusRecentlyArrived   Status = "RECENTLY_ARRIVED"
	StatusWaiting           Status = "WAITING"
	StatusInConsultation    Status = "IN_CONSULTATION"
	StatusInStudies         Status = "IN_STUDIES"
	StatusReadyForDischarge Status = "READY_FOR_DISCHARGE"
	StatusDischarged        Status = "DISCHARGED"
	StatusHospitalized      Status = "HOSPITALIZED"
	StatusCancelled         Status = "CANCELLED"
)

// Statuses lists every lifecycle state in workflow order.
var Statuses = []Status{
	StatusRecentlyArrived,
	StatusWaiting,
	StatusInConsultation,
	StatusInStudies,
	StatusReadyForDischarge,
	StatusDischarged,
	StatusHospitalized,
	StatusCancelled,
}

// transitions is the allowed-transition table. A status missing from the map
// is terminal.
var transitions = map[Status][]Status{
	StatusRecentlyArrived:   {StatusWaiting, StatusCancelled},
	StatusWaiting:           {StatusInConsultation, StatusCancelled},
	StatusInConsultation:    {StatusInStudies, StatusReadyForDischarge, StatusHospitalized},
	StatusInStudies:         {StatusInConsultation},
	StatusReadyForDischarge: {StatusDischarged},
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return s.Valid() && !ok
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// hasConsultation reports whether a visit in s keeps its consultation linked.
func (s Status) hasConsultation() bool {
	return s == StatusInConsultation || s == StatusInStudies
}

// Priority is the triage urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// rank orders the waiting board: lower ranks are seen first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// Vitals is the baseline snapshot taken at triage.
type Vitals struct {
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
}

// PaymentSummary is what the front desk reports at discharge. Capture happens
// in the billing system; the summary is kept for the record only.
type PaymentSummary struct {
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// Visit is one clinical episode for one patient.
type Visit struct {
	ID                uuid.UUID       `json:"id"`
	PatientID         uuid.UUID       `json:"patient_id"`
	ArrivalTime       time.Time       `json:"arrival_time"`
	Status            Status          `json:"status"`
	Priority          Priority        `json:"priority,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Vitals            *Vitals         `json:"vitals,omitempty"`
	ConsultationID    *uuid.UUID      `json:"consultation_id,omitempty"`
	HospitalizationID *uuid.UUID      `json:"hospitalization_id,omitempty"`
	Payment           *PaymentSummary `json:"payment,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Triage carries the data recorded before a doctor sees the patient.
type Triage struct {
	Reason   string
	Priority Priority
	Vitals   *Vitals
}

// Admission is the hospitalization decision taken during a consultation.
type Admission struct {
	Reason      string `json:"reason"`
	Location    string `json:"location"`
	SpecialCare string `json:"special_care,omitempty"`
	AttendingID string `json:"attending_id,omitempty"`
}

// AdmissionRequest is handed to the hospitalization service.
type AdmissionRequest struct {
	VisitID     uuid.UUID
	PatientID   uuid.UUID
	AttendingID string
	Reason      string
	Location    string
	SpecialCare string
	AdmittedAt  time.Time
}

// StatusHistory is one recorded transition. From is empty for check-in.
type StatusHistory struct {
	ID      uuid.UUID `json:"id"`
	VisitID uuid.UUID `json:"visit_id"`
	From    Status    `json:"from,omitempty"`
	To      Status    `json:"to"`
	ActorID string    `json:"actor_id,omitempty"`
	At      time.Time `json:"at"`
}

// ConsultationStatus is the state of a Consultation.
type ConsultationStatus string

const (
	ConsultationInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationCompleted  ConsultationStatus = "COMPLETED"
)

// Consultation is one clinical encounter owned by exactly one Visit.
// PhysicalExam holds the stored exam document as text.
type Consultation struct {
	ID            uuid.UUID          `json:"id"`
	VisitID       uuid.UUID          `json:"visit_id"`
	PatientID     uuid.UUID          `json:"patient_id"`
	DoctorID      string             `json:"doctor_id"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       *time.Time         `json:"end_time,omitempty"`
	Status        ConsultationStatus `json:"status"`
	PhysicalExam  *string            `json:"physical_exam,omitempty"`
	Diagnoses     []Diagnosis        `json:"diagnoses"`
	VitalSigns    []VitalSigns       `json:"vital_signs"`
	Prescriptions []Prescription     `json:"prescriptions"`
	LabRequests   []LabRequest       `json:"lab_requests"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Open reports whether child records may still be appended.
func (c *Consultation) Open() bool {
	return c.Status == ConsultationInProgress
}

type Diagnosis struct {
	ID             uuid.UUID `json:"id"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	Code           string    `json:"code,omitempty"`
	Description    string    `json:"description"`
	Kind           string    `json:"kind,omitempty"` // PRESUMPTIVE or DEFINITIVE
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type VitalSigns struct {
	ID              uuid.UUID `json:"id"`
	ConsultationID  uuid.UUID `json:"consultation_id"`
	RecordedAt      time.Time `json:"recorded_at"`
	WeightKg        *float64  `json:"weight_kg,omitempty"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
	HeartRate       *int      `json:"heart_rate,omitempty"`
	RespiratoryRate *int      `json:"respiratory_rate,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

type Prescription struct {
	ID             uuid.UUID          `json:"id"`
	ConsultationID uuid.UUID          `json:"consultation_id"`
	Notes          string             `json:"notes,omitempty"`
	Items          []PrescriptionItem `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

// PrescriptionItem references the pharmacy catalog by an opaque id.
type PrescriptionItem struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name,omitempty"`
	Dose           string    `json:"dose"`
	Frequency      string    `json:"frequency"`
	Route          string    `json:"route,omitempty"`
	DurationDays   *int      `json:"duration_days,omitempty"`
	Instructions   string    `json:"instructions,omitempty"`
}

// LabRequest references the lab catalog by an opaque test code.
type LabRequest struct {
	ID             uuid.UUID `json:"id"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	TestCode       string    `json:"test_code"`
	TestName       string    `json:"test_name,omitempty"`
	Urgent         bool      `json:"urgent"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// VisitTransitioned is published after every successful transition.
type VisitTransitioned struct {
	VisitID   uuid.UUID `json:"visit_id"`
	PatientID uuid.UUID `json:"patient_id"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	ActorID   string    `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

const EventVisitTransitioned = "VisitTransitioned"
