package episode

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Change is a guarded status update. The visit moves to To only if its
// current status is one of From; the optional fields are written in the same
// statement.
type Change struct {
	From               []Status
	To                 Status
	Reason             *string
	Priority           *Priority
	Vitals             *Vitals
	LinkConsultation   *uuid.UUID
	UnlinkConsultation bool
	Payment            *PaymentSummary
}

type Repository interface {
	// InTx runs fn in one unit of work. Calls made with the ctx passed to fn
	// join it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Visits
	CreateVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListActiveVisits(ctx context.Context) ([]*Visit, error)
	// Transition applies c atomically. applied is false when the visit
	// exists but its status is not in c.From.
	Transition(ctx context.Context, id uuid.UUID, c Change) (v *Visit, applied bool, err error)
	LinkHospitalization(ctx context.Context, visitID, hospitalizationID uuid.UUID) error

	// Status History
	AddStatusHistory(ctx context.Context, h *StatusHistory) error
	GetStatusHistory(ctx context.Context, visitID uuid.UUID) ([]*StatusHistory, error)

	// Consultations
	CreateConsultation(ctx context.Context, c *Consultation) error
	GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	// LockConsultation reads the consultation header and holds it against a
	// concurrent close until the unit of work ends.
	LockConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	// CloseConsultation completes the in-progress consultation of a visit.
	CloseConsultation(ctx context.Context, visitID uuid.UUID, at time.Time) (*Consultation, error)
	SetPhysicalExam(ctx context.Context, consultationID uuid.UUID, doc string) error
	ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error)

	// Child records
	AddDiagnosis(ctx context.Context, d *Diagnosis) error
	AddVitalSigns(ctx context.Context, vs *VitalSigns) error
	AddPrescription(ctx context.Context, p *Prescription) error
	AddLabRequest(ctx context.Context, l *LabRequest) error
}
