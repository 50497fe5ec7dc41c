package directory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetStaff(ctx context.Context, id string) (*Staff, error)
}
