package hospitalization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/platform/auth"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// Create admits the patient of a visit. It runs inside the caller's unit of
// work when one is open on ctx.
func (s *Service) Create(ctx context.Context, req episode.AdmissionRequest) (uuid.UUID, error) {
	if req.VisitID == uuid.Nil || req.PatientID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("visit and patient are required: %w", ErrInvalidInput)
	}
	h := &Hospitalization{
		VisitID:     req.VisitID,
		PatientID:   req.PatientID,
		AttendingID: strings.TrimSpace(req.AttendingID),
		Reason:      strings.TrimSpace(req.Reason),
		Location:    strings.TrimSpace(req.Location),
		SpecialCare: strings.TrimSpace(req.SpecialCare),
		AdmittedAt:  req.AdmittedAt,
		Status:      StatusActive,
	}
	if h.Reason == "" {
		return uuid.Nil, fmt.Errorf("reason is required: %w", ErrInvalidInput)
	}
	if h.Location == "" {
		return uuid.Nil, fmt.Errorf("location is required: %w", ErrInvalidInput)
	}
	if h.AttendingID == "" {
		return uuid.Nil, fmt.Errorf("attending veterinarian is required: %w", ErrInvalidInput)
	}
	if h.AdmittedAt.IsZero() {
		h.AdmittedAt = s.now()
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return uuid.Nil, fmt.Errorf("create hospitalization: %w", err)
	}
	s.logger.Info().
		Str("hospitalization_id", h.ID.String()).
		Str("visit_id", h.VisitID.String()).
		Msg("patient admitted")
	return h.ID, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospitalization, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Hospitalization, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// AllForPatient returns every admission of the patient with all readings.
func (s *Service) AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*Hospitalization, error) {
	items, _, err := s.repo.ListByPatient(ctx, patientID, 0, 0)
	return items, err
}

// AddMonitoring appends a reading to an active admission. The recorder
// defaults to the caller.
func (s *Service) AddMonitoring(ctx context.Context, id uuid.UUID, m *Monitoring) error {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if h.Status != StatusActive {
		return ErrAlreadyDischarged
	}
	m.Notes = strings.TrimSpace(m.Notes)
	if m.TemperatureC == nil && m.HeartRate == nil && m.RespiratoryRate == nil && m.Notes == "" {
		return fmt.Errorf("a reading or a note is required: %w", ErrInvalidInput)
	}
	now := s.now()
	if m.RecordedAt.IsZero() {
		m.RecordedAt = now
	}
	if m.RecordedAt.Before(h.AdmittedAt) {
		return fmt.Errorf("reading predates admission: %w", ErrInvalidInput)
	}
	if m.RecordedBy == "" {
		m.RecordedBy = auth.UserIDFromContext(ctx)
	}
	m.HospitalizationID = id
	return s.repo.AddMonitoring(ctx, m)
}

func (s *Service) Discharge(ctx context.Context, id uuid.UUID, notes string) (*Hospitalization, error) {
	h, err := s.repo.Discharge(ctx, id, s.now(), strings.TrimSpace(notes))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("hospitalization_id", id.String()).Msg("patient discharged from hospitalization")
	return h, nil
}
