package surgery

import (
	"context"

	"github.com/google/uuid"
)

// StatusUpdate carries the fields written alongside a status change.
type StatusUpdate struct {
	From            Status
	To              Status
	DurationMinutes *int
	PostOpNotes     *string
	CancelReason    *string
}

type Repository interface {
	Create(ctx context.Context, s *Surgery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error)
	// ListByPatient orders by scheduled date, newest first. A non-positive
	// limit returns every row.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Surgery, int, error)
	// UpdateStatus applies u only if the row is still in u.From and reports
	// ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Surgery, error)
}
