package surgery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

func validAnesthesia(t string) bool {
	for _, a := range AnesthesiaTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Schedule records a new surgery in SCHEDULED status.
func (s *Service) Schedule(ctx context.Context, sg *Surgery) error {
	sg.SurgeonID = strings.TrimSpace(sg.SurgeonID)
	sg.ProcedureName = strings.TrimSpace(sg.ProcedureName)
	sg.AnesthesiaType = strings.ToUpper(strings.TrimSpace(sg.AnesthesiaType))
	if sg.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required: %w", ErrInvalidInput)
	}
	if sg.SurgeonID == "" {
		return fmt.Errorf("surgeon_id is required: %w", ErrInvalidInput)
	}
	if sg.ProcedureName == "" {
		return fmt.Errorf("procedure_name is required: %w", ErrInvalidInput)
	}
	if sg.ScheduledDate.IsZero() {
		return fmt.Errorf("scheduled_date is required: %w", ErrInvalidInput)
	}
	if sg.AnesthesiaType != "" && !validAnesthesia(sg.AnesthesiaType) {
		return fmt.Errorf("invalid anesthesia_type %q: %w", sg.AnesthesiaType, ErrInvalidInput)
	}
	if sg.DurationMinutes != nil && *sg.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive: %w", ErrInvalidInput)
	}
	sg.Status = StatusScheduled
	sg.ScheduledDate = sg.ScheduledDate.UTC()
	return s.repo.Create(ctx, sg)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Surgery, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// AllForPatient returns every surgery of the patient.
func (s *Service) AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*Surgery, error) {
	items, _, err := s.repo.ListByPatient(ctx, patientID, 0, 0)
	return items, err
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return s.move(ctx, id, StatusUpdate{To: StatusInProgress})
}

// Complete closes an in-progress surgery. Without an explicit duration the
// elapsed time since Start is recorded.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, postOpNotes string, durationMinutes *int) (*Surgery, error) {
	if durationMinutes != nil && *durationMinutes <= 0 {
		return nil, fmt.Errorf("duration_minutes must be positive: %w", ErrInvalidInput)
	}
	notes := strings.TrimSpace(postOpNotes)
	u := StatusUpdate{To: StatusCompleted, PostOpNotes: &notes, DurationMinutes: durationMinutes}
	return s.move(ctx, id, u)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Surgery, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("cancel reason is required: %w", ErrInvalidInput)
	}
	return s.move(ctx, id, StatusUpdate{To: StatusCancelled, CancelReason: &reason})
}

func (s *Service) move(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Surgery, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, u.To) {
		return nil, fmt.Errorf("%s -> %s: %w", cur.Status, u.To, ErrInvalidTransition)
	}
	u.From = cur.Status
	if u.To == StatusCompleted && u.DurationMinutes == nil && cur.StartedAt != nil {
		mins := int(time.Since(*cur.StartedAt).Round(time.Minute) / time.Minute)
		if mins > 0 {
			u.DurationMinutes = &mins
		}
	}
	sg, err := s.repo.UpdateStatus(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("surgery_id", id.String()).
		Str("from", string(u.From)).
		Str("to", string(u.To)).
		Msg("surgery status changed")
	return sg, nil
}
