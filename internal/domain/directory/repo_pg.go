package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetehr/vetehr/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.species, p.breed, p.sex, p.birth_date,
			o.id, o.name, o.phone, o.email
		FROM patient p
		JOIN owner o ON o.id = p.owner_id
		WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Species, &p.Breed, &p.Sex, &p.BirthDate,
		&p.Owner.ID, &p.Owner.Name, &p.Owner.Phone, &p.Owner.Email)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetStaff(ctx context.Context, id string) (*Staff, error) {
	var s Staff
	err := r.pool.QueryRow(ctx,
		`SELECT id, display_name, role FROM staff WHERE id = $1`, id,
	).Scan(&s.ID, &s.DisplayName, &s.Role)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("staff %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
