package hospitalization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, h *Hospitalization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospitalization, error)
	// ListByPatient returns admissions newest first with their monitoring
	// readings. A non-positive limit returns every row.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Hospitalization, int, error)
	// AddMonitoring inserts the reading only while the admission is ACTIVE,
	// checked in the same statement. It reports ErrAlreadyDischarged otherwise.
	AddMonitoring(ctx context.Context, m *Monitoring) error
	// Discharge moves an ACTIVE admission to DISCHARGED. It reports
	// ErrAlreadyDischarged when the row is no longer active.
	Discharge(ctx context.Context, id uuid.UUID, at time.Time, notes string) (*Hospitalization, error)
}
