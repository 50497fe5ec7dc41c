package vaccination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Record stores an administered vaccine. The administration date defaults
// to now.
func (s *Service) Record(ctx context.Context, v *Vaccination) error {
	v.VaccineName = strings.TrimSpace(v.VaccineName)
	v.LotNumber = strings.TrimSpace(v.LotNumber)
	v.VeterinarianID = strings.TrimSpace(v.VeterinarianID)
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required: %w", ErrInvalidInput)
	}
	if v.VaccineName == "" {
		return fmt.Errorf("vaccine_name is required: %w", ErrInvalidInput)
	}
	if v.VeterinarianID == "" {
		return fmt.Errorf("veterinarian_id is required: %w", ErrInvalidInput)
	}
	now := s.now()
	if v.AdministrationDate.IsZero() {
		v.AdministrationDate = now
	}
	if v.AdministrationDate.After(now.Add(time.Minute)) {
		return fmt.Errorf("administration_date is in the future: %w", ErrInvalidInput)
	}
	if v.NextDoseDue != nil && !v.NextDoseDue.After(v.AdministrationDate) {
		return fmt.Errorf("next_dose_due must follow administration_date: %w", ErrInvalidInput)
	}
	v.Status = StatusCompleted
	return s.repo.Create(ctx, v)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// AllForPatient returns every vaccination of the patient, including ones
// entered in error.
func (s *Service) AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*Vaccination, error) {
	items, _, err := s.repo.ListByPatient(ctx, patientID, 0, 0)
	return items, err
}

// ListDue returns vaccinations with a follow-up dose due by day.
func (s *Service) ListDue(ctx context.Context, day time.Time, limit, offset int) ([]*Vaccination, int, error) {
	if day.IsZero() {
		day = s.now()
	}
	return s.repo.ListDue(ctx, day, limit, offset)
}

// MarkEnteredInError retracts a record without deleting it.
func (s *Service) MarkEnteredInError(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return s.repo.SetStatus(ctx, id, StatusEnteredInError)
}
