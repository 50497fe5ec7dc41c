package episode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetehr/vetehr/internal/domain/exam"
	"github.com/vetehr/vetehr/internal/platform/auth"
	"github.com/vetehr/vetehr/internal/platform/events"
)

// HospitalizationCreator opens a hospitalization record for an admitted
// patient and returns its id.
type HospitalizationCreator interface {
	Create(ctx context.Context, req AdmissionRequest) (uuid.UUID, error)
}

// PatientChecker resolves whether a patient exists in the patient store.
type PatientChecker interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	hosp      HospitalizationCreator
	patients  PatientChecker
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		publisher: events.Nop{},
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetHospitalizations attaches the service that receives admissions.
func (s *Service) SetHospitalizations(h HospitalizationCreator) {
	s.hosp = h
}

// SetPatientChecker makes check-in verify the patient exists.
func (s *Service) SetPatientChecker(p PatientChecker) {
	s.patients = p
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// -- Transitions --

func (s *Service) CheckIn(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	if patientID == uuid.Nil {
		return nil, invalidInput("patient_id is required")
	}
	if s.patients != nil {
		ok, err := s.patients.PatientExists(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("check patient: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
		}
	}

	now := s.now()
	v := &Visit{
		ID:          uuid.New(),
		PatientID:   patientID,
		ArrivalTime: now,
		Status:      StatusRecentlyArrived,
	}
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateVisit(ctx, v); err != nil {
			return err
		}
		return s.repo.AddStatusHistory(ctx, &StatusHistory{
			VisitID: v.ID,
			To:      StatusRecentlyArrived,
			ActorID: auth.UserIDFromContext(ctx),
			At:      now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, v, "")
	return v, nil
}

func (s *Service) CompleteTriage(ctx context.Context, visitID uuid.UUID, t Triage) (*Visit, error) {
	reason := strings.TrimSpace(t.Reason)
	if reason == "" {
		return nil, invalidInput("reason is required")
	}
	if !t.Priority.Valid() {
		return nil, invalidInput("priority must be LOW, MEDIUM or HIGH")
	}
	return s.transition(ctx, "complete triage", visitID, Change{
		From:     []Status{StatusRecentlyArrived},
		To:       StatusWaiting,
		Reason:   &reason,
		Priority: &t.Priority,
		Vitals:   t.Vitals,
	}, nil)
}

// UpdatePriority changes the priority of a visit that has not been seen yet.
// The status is unchanged and no history row is written.
func (s *Service) UpdatePriority(ctx context.Context, visitID uuid.UUID, p Priority) (*Visit, error) {
	if !p.Valid() {
		return nil, invalidInput("priority must be LOW, MEDIUM or HIGH")
	}
	v, err := s.repo.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	required := []Status{StatusRecentlyArrived, StatusWaiting}
	if v.Status != StatusRecentlyArrived && v.Status != StatusWaiting {
		return nil, &InvalidTransitionError{Op: "update priority", Required: required, Actual: v.Status}
	}
	// guarded on the status just read; a concurrent move makes it miss
	updated, applied, err := s.repo.Transition(ctx, visitID, Change{
		From:     []Status{v.Status},
		To:       v.Status,
		Priority: &p,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, &InvalidTransitionError{Op: "update priority", Required: []Status{v.Status}, Actual: updated.Status}
	}
	return updated, nil
}

// StartConsultation moves a waiting visit into consultation and creates its
// Consultation. If the visit already has an in-progress consultation linked,
// that consultation is returned unchanged.
func (s *Service) StartConsultation(ctx context.Context, visitID uuid.UUID, doctorID string) (*Consultation, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, invalidInput("doctor_id is required")
	}

	var (
		created *Consultation
		visit   *Visit
		current *Visit
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		now := s.now()
		consID := uuid.New()
		v, applied, err := s.repo.Transition(ctx, visitID, Change{
			From:             []Status{StatusWaiting},
			To:               StatusInConsultation,
			LinkConsultation: &consID,
		})
		if err != nil {
			return err
		}
		if !applied {
			current = v
			return nil
		}
		c := &Consultation{
			ID:        consID,
			VisitID:   v.ID,
			PatientID: v.PatientID,
			DoctorID:  doctorID,
			StartTime: now,
			Status:    ConsultationInProgress,
		}
		if err := s.repo.CreateConsultation(ctx, c); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, v.ID, StatusWaiting, StatusInConsultation, now); err != nil {
			return err
		}
		c.Diagnoses, c.VitalSigns, c.Prescriptions, c.LabRequests =
			[]Diagnosis{}, []VitalSigns{}, []Prescription{}, []LabRequest{}
		created, visit = c, v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.publish(ctx, visit, StatusWaiting)
		return created, nil
	}

	// lost the race or re-entered
	if current.ConsultationID != nil && current.Status.hasConsultation() {
		c, err := s.repo.GetConsultation(ctx, *current.ConsultationID)
		if err != nil {
			return nil, err
		}
		if c.Open() {
			return c, nil
		}
	}
	return nil, &InvalidTransitionError{
		Op:       "start consultation",
		Required: []Status{StatusWaiting},
		Actual:   current.Status,
	}
}

func (s *Service) OrderStudies(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.transition(ctx, "order studies", visitID, Change{
		From: []Status{StatusInConsultation},
		To:   StatusInStudies,
	}, nil)
}

func (s *Service) ResumeFromStudies(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.transition(ctx, "resume from studies", visitID, Change{
		From: []Status{StatusInStudies},
		To:   StatusInConsultation,
	}, nil)
}

func (s *Service) CompleteConsultation(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.transition(ctx, "complete consultation", visitID, Change{
		From:               []Status{StatusInConsultation},
		To:                 StatusReadyForDischarge,
		UnlinkConsultation: true,
	}, func(ctx context.Context, v *Visit, at time.Time) error {
		_, err := s.repo.CloseConsultation(ctx, v.ID, at)
		return err
	})
}

// Hospitalize closes the consultation and hands the patient over to the
// hospitalization service in the same unit of work.
func (s *Service) Hospitalize(ctx context.Context, visitID uuid.UUID, a Admission) (*Visit, error) {
	if s.hosp == nil {
		return nil, errors.New("hospitalization service not configured")
	}
	a.Reason = strings.TrimSpace(a.Reason)
	a.Location = strings.TrimSpace(a.Location)
	if a.Reason == "" {
		return nil, invalidInput("reason is required")
	}
	if a.Location == "" {
		return nil, invalidInput("location is required")
	}

	return s.transition(ctx, "hospitalize", visitID, Change{
		From:               []Status{StatusInConsultation},
		To:                 StatusHospitalized,
		UnlinkConsultation: true,
	}, func(ctx context.Context, v *Visit, at time.Time) error {
		c, err := s.repo.CloseConsultation(ctx, v.ID, at)
		if err != nil {
			return err
		}
		attending := strings.TrimSpace(a.AttendingID)
		if attending == "" {
			attending = c.DoctorID
		}
		hid, err := s.hosp.Create(ctx, AdmissionRequest{
			VisitID:     v.ID,
			PatientID:   v.PatientID,
			AttendingID: attending,
			Reason:      a.Reason,
			Location:    a.Location,
			SpecialCare: strings.TrimSpace(a.SpecialCare),
			AdmittedAt:  at,
		})
		if err != nil {
			return fmt.Errorf("create hospitalization: %w", err)
		}
		if err := s.repo.LinkHospitalization(ctx, v.ID, hid); err != nil {
			return err
		}
		v.HospitalizationID = &hid
		return nil
	})
}

func (s *Service) Discharge(ctx context.Context, visitID uuid.UUID, p PaymentSummary) (*Visit, error) {
	p.Method = strings.TrimSpace(p.Method)
	if p.Method == "" {
		return nil, invalidInput("payment method is required")
	}
	if p.Amount < 0 {
		return nil, invalidInput("payment amount must not be negative")
	}
	return s.transition(ctx, "discharge", visitID, Change{
		From:    []Status{StatusReadyForDischarge},
		To:      StatusDischarged,
		Payment: &p,
	}, nil)
}

func (s *Service) Cancel(ctx context.Context, visitID uuid.UUID) (*Visit, error) {
	return s.transition(ctx, "cancel", visitID, Change{
		From: []Status{StatusRecentlyArrived, StatusWaiting},
		To:   StatusCancelled,
	}, nil)
}

// transition applies c, runs then inside the same unit of work, records the
// history row and publishes the event once committed.
func (s *Service) transition(ctx context.Context, op string, visitID uuid.UUID, c Change,
	then func(ctx context.Context, v *Visit, at time.Time) error) (*Visit, error) {
	for _, from := range c.From {
		if !CanTransition(from, c.To) {
			return nil, fmt.Errorf("%s: %s -> %s is not in the transition table", op, from, c.To)
		}
	}

	var (
		visit *Visit
		from  Status
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		now := s.now()
		v, applied, err := s.repo.Transition(ctx, visitID, c)
		if err != nil {
			return err
		}
		if !applied {
			return &InvalidTransitionError{Op: op, Required: c.From, Actual: v.Status}
		}
		// c.From has one entry except for cancel; history needs the real one
		from = c.From[0]
		if len(c.From) > 1 {
			if from, err = s.previousStatus(ctx, v.ID, c.From); err != nil {
				return err
			}
		}
		if then != nil {
			if err := then(ctx, v, now); err != nil {
				return err
			}
		}
		if err := s.recordHistory(ctx, v.ID, from, c.To, now); err != nil {
			return err
		}
		visit = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, visit, from)
	return visit, nil
}

// previousStatus reads the last recorded status of a visit from its history.
func (s *Service) previousStatus(ctx context.Context, visitID uuid.UUID, candidates []Status) (Status, error) {
	history, err := s.repo.GetStatusHistory(ctx, visitID)
	if err != nil {
		return "", fmt.Errorf("read status history: %w", err)
	}
	if len(history) == 0 {
		return candidates[0], nil
	}
	return history[len(history)-1].To, nil
}

func (s *Service) recordHistory(ctx context.Context, visitID uuid.UUID, from, to Status, at time.Time) error {
	return s.repo.AddStatusHistory(ctx, &StatusHistory{
		VisitID: visitID,
		From:    from,
		To:      to,
		ActorID: auth.UserIDFromContext(ctx),
		At:      at,
	})
}

// publish is best effort: the transition is already committed.
func (s *Service) publish(ctx context.Context, v *Visit, from Status) {
	evt := VisitTransitioned{
		VisitID:   v.ID,
		PatientID: v.PatientID,
		From:      from,
		To:        v.Status,
		ActorID:   auth.UserIDFromContext(ctx),
		At:        v.UpdatedAt,
	}
	key := "visit." + strings.ToLower(string(v.Status))
	if err := s.publisher.Publish(ctx, key, events.NewEnvelope(EventVisitTransitioned, evt)); err != nil {
		s.logger.Warn().Err(err).
			Str("visit_id", v.ID.String()).
			Str("routing_key", key).
			Msg("publish visit transition")
	}
}

// -- Consultation records --

func (s *Service) AddDiagnosis(ctx context.Context, consultationID uuid.UUID, d *Diagnosis) error {
	d.Description = strings.TrimSpace(d.Description)
	if d.Description == "" {
		return invalidInput("description is required")
	}
	if d.Kind != "" && d.Kind != "PRESUMPTIVE" && d.Kind != "DEFINITIVE" {
		return invalidInput("kind must be PRESUMPTIVE or DEFINITIVE")
	}
	return s.appendRecord(ctx, consultationID, func(ctx context.Context) error {
		d.ConsultationID = consultationID
		return s.repo.AddDiagnosis(ctx, d)
	})
}

func (s *Service) RecordVitalSigns(ctx context.Context, consultationID uuid.UUID, vs *VitalSigns) error {
	if vs.WeightKg == nil && vs.TemperatureC == nil && vs.HeartRate == nil && vs.RespiratoryRate == nil {
		return invalidInput("at least one measurement is required")
	}
	if vs.RecordedAt.IsZero() {
		vs.RecordedAt = s.now()
	}
	return s.appendRecord(ctx, consultationID, func(ctx context.Context) error {
		vs.ConsultationID = consultationID
		return s.repo.AddVitalSigns(ctx, vs)
	})
}

func (s *Service) AddPrescription(ctx context.Context, consultationID uuid.UUID, p *Prescription) error {
	if len(p.Items) == 0 {
		return invalidInput("at least one item is required")
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.MedicationID) == "" {
			return invalidInput("items[%d].medication_id is required", i)
		}
		if strings.TrimSpace(it.Dose) == "" {
			return invalidInput("items[%d].dose is required", i)
		}
	}
	return s.appendRecord(ctx, consultationID, func(ctx context.Context) error {
		p.ConsultationID = consultationID
		return s.repo.AddPrescription(ctx, p)
	})
}

func (s *Service) AddLabRequest(ctx context.Context, consultationID uuid.UUID, l *LabRequest) error {
	l.TestCode = strings.TrimSpace(l.TestCode)
	if l.TestCode == "" {
		return invalidInput("test_code is required")
	}
	return s.appendRecord(ctx, consultationID, func(ctx context.Context) error {
		l.ConsultationID = consultationID
		return s.repo.AddLabRequest(ctx, l)
	})
}

// RecordPhysicalExam validates raw and stores the normalized document. A
// structurally malformed document is rejected. Vocabulary and range
// violations do not block storage; they are returned as *exam.ValidationError
// together with the updated consultation.
func (s *Service) RecordPhysicalExam(ctx context.Context, consultationID uuid.UUID, raw []byte) (*Consultation, error) {
	doc, verr := exam.ValidateDocument(raw)
	var structural *exam.StructuralError
	if errors.As(verr, &structural) {
		return nil, verr
	}
	stored, err := exam.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode exam: %w", err)
	}

	err = s.appendRecord(ctx, consultationID, func(ctx context.Context) error {
		return s.repo.SetPhysicalExam(ctx, consultationID, string(stored))
	})
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	return c, verr
}

func (s *Service) appendRecord(ctx context.Context, consultationID uuid.UUID, write func(ctx context.Context) error) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.LockConsultation(ctx, consultationID)
		if err != nil {
			return err
		}
		if !c.Open() {
			return ErrConsultationClosed
		}
		return write(ctx)
	})
}

// -- Queries --

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.repo.GetVisit(ctx, id)
}

// ListActiveVisits returns the waiting board: non-terminal visits, most
// urgent first, then by arrival.
func (s *Service) ListActiveVisits(ctx context.Context) ([]*Visit, error) {
	return s.repo.ListActiveVisits(ctx)
}

func (s *Service) VisitHistory(ctx context.Context, visitID uuid.UUID) ([]*StatusHistory, error) {
	if _, err := s.repo.GetVisit(ctx, visitID); err != nil {
		return nil, err
	}
	return s.repo.GetStatusHistory(ctx, visitID)
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetConsultation(ctx, id)
}

func (s *Service) ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	return s.repo.ListConsultationsByPatient(ctx, patientID)
}
