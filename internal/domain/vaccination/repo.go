package vaccination

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Vaccination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error)
	// ListByPatient orders by administration date, newest first. A
	// non-positive limit returns every row.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error)
	// ListDue returns completed vaccinations whose next dose is due on or
	// before day.
	ListDue(ctx context.Context, day time.Time, limit, offset int) ([]*Vaccination, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Vaccination, error)
}
