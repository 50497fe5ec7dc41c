package timeline

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetehr/vetehr/internal/domain/directory"
	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/domain/exam"
	"github.com/vetehr/vetehr/internal/domain/hospitalization"
)

// ErrHistoryUnavailable is returned when every source failed.
var ErrHistoryUnavailable = errors.New("patient history unavailable")

// Kind identifies the source record type of an entry.
type Kind string

const (
	KindConsultation    Kind = "CONSULTATION"
	KindHospitalization Kind = "HOSPITALIZATION"
	KindSurgery         Kind = "SURGERY"
	KindVaccination     Kind = "VACCINATION"
)

// Kinds lists every kind in tie-break order.
var Kinds = []Kind{KindConsultation, KindHospitalization, KindSurgery, KindVaccination}

// priority orders entries sharing a timestamp. Lower sorts first.
func (k Kind) priority() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

// Entry is one normalized record in a patient's history.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	RecordID  uuid.UUID `json:"record_id"`
	Status    string    `json:"status"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	Summary   string    `json:"summary"`
	Details   Details   `json:"details"`
}

// Details is the kind-specific payload of an Entry. The set of
// implementations is closed to this package.
type Details interface {
	kind() Kind
}

type ConsultationDetails struct {
	Vitals            *episode.VitalSigns        `json:"vitals,omitempty"`
	Diagnoses         []episode.Diagnosis        `json:"diagnoses"`
	PrescriptionItems []episode.PrescriptionItem `json:"prescription_items"`
	LabRequests       []episode.LabRequest       `json:"lab_requests"`
	Exam              *ExamSummary               `json:"exam,omitempty"`
	ExamError         bool                       `json:"exam_error,omitempty"`
	ExamRaw           string                     `json:"exam_raw,omitempty"`
}

type HospitalizationDetails struct {
	Reason         string                       `json:"reason"`
	Location       string                       `json:"location"`
	SpecialCare    string                       `json:"special_care,omitempty"`
	Monitoring     []hospitalization.Monitoring `json:"monitoring"`
	DischargedAt   *time.Time                   `json:"discharged_at,omitempty"`
	DischargeNotes string                       `json:"discharge_notes,omitempty"`
}

type SurgeryDetails struct {
	ProcedureName   string `json:"procedure_name"`
	AnesthesiaType  string `json:"anesthesia_type,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	PreOpNotes      string `json:"pre_op_notes,omitempty"`
	PostOpNotes     string `json:"post_op_notes,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
}

type VaccinationDetails struct {
	VaccineName string     `json:"vaccine_name"`
	LotNumber   string     `json:"lot_number,omitempty"`
	Route       string     `json:"route,omitempty"`
	NextDoseDue *time.Time `json:"next_dose_due,omitempty"`
}

func (ConsultationDetails) kind() Kind    { return KindConsultation }
func (HospitalizationDetails) kind() Kind { return KindHospitalization }
func (SurgeryDetails) kind() Kind         { return KindSurgery }
func (VaccinationDetails) kind() Kind     { return KindVaccination }

// ExamSummary is the display form of an embedded physical exam.
type ExamSummary struct {
	General     GeneralSummary     `json:"general"`
	Specialties []SpecialtySummary `json:"specialties,omitempty"`
}

type GeneralSummary struct {
	Weight             *float64            `json:"weight,omitempty"`
	Temperature        *float64            `json:"temperature,omitempty"`
	HeartRate          *int                `json:"heart_rate,omitempty"`
	RespiratoryRate    *int                `json:"respiratory_rate,omitempty"`
	PulseRate          *int                `json:"pulse_rate,omitempty"`
	PulseQuality       string              `json:"pulse_quality,omitempty"`
	BodyConditionScore *int                `json:"body_condition_score,omitempty"`
	Hydration          string              `json:"hydration,omitempty"`
	Findings           map[string][]string `json:"findings,omitempty"`
	Observations       string              `json:"observations,omitempty"`
}

// SpecialtySummary holds the populated parts of one specialty section.
// Paired and Measures are only set for laterality-paired sections.
type SpecialtySummary struct {
	Name     exam.SpecialtyName  `json:"name"`
	Findings map[string][]string `json:"findings,omitempty"`
	Scores   map[string]int      `json:"scores,omitempty"`
	Paired   []PairedFinding     `json:"paired,omitempty"`
	Measures []PairedMeasure     `json:"measures,omitempty"`
	Notes    string              `json:"notes,omitempty"`
}

// PairedFinding groups the right and left findings of one site.
type PairedFinding struct {
	Site  string   `json:"site"`
	Right []string `json:"right,omitempty"`
	Left  []string `json:"left,omitempty"`
}

type PairedMeasure struct {
	Name  string   `json:"name"`
	Right *float64 `json:"right,omitempty"`
	Left  *float64 `json:"left,omitempty"`
}

// Warning reports a source whose records are missing from a Report.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Report is a patient's merged history, newest first.
type Report struct {
	PatientID uuid.UUID          `json:"patient_id"`
	Patient   *directory.Patient `json:"patient,omitempty"`
	Entries   []Entry            `json:"entries"`
	Warnings  []Warning          `json:"warnings,omitempty"`
	Partial   bool               `json:"partial"`
}
