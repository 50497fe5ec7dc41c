package vaccination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetehr/vetehr/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const vaccCols = `id, patient_id, visit_id, veterinarian_id, vaccine_name, manufacturer,
	lot_number, route, administration_date, next_dose_due, status, notes,
	created_at, updated_at`

func scanVacc(row pgx.Row) (*Vaccination, error) {
	var v Vaccination
	var status string
	err := row.Scan(&v.ID, &v.PatientID, &v.VisitID, &v.VeterinarianID, &v.VaccineName, &v.Manufacturer,
		&v.LotNumber, &v.Route, &v.AdministrationDate, &v.NextDoseDue, &status, &v.Notes,
		&v.CreatedAt, &v.UpdatedAt)
	v.Status = Status(status)
	return &v, err
}

func collect(rows pgx.Rows) ([]*Vaccination, error) {
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := scanVacc(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, v *Vaccination) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vaccination (id, patient_id, visit_id, veterinarian_id, vaccine_name, manufacturer,
			lot_number, route, administration_date, next_dose_due, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		v.ID, v.PatientID, v.VisitID, v.VeterinarianID, v.VaccineName, v.Manufacturer,
		v.LotNumber, v.Route, v.AdministrationDate, v.NextDoseDue, string(v.Status), v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	v, err := scanVacc(r.conn(ctx).QueryRow(ctx, `SELECT `+vaccCols+` FROM vaccination WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("vaccination %s: %w", id, ErrNotFound)
	}
	return v, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccination WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaccCols+` FROM vaccination
		WHERE patient_id = $1
		ORDER BY administration_date DESC, id
		LIMIT NULLIF($2, 0) OFFSET $3`, patientID, max(limit, 0), max(offset, 0))
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListDue(ctx context.Context, day time.Time, limit, offset int) ([]*Vaccination, int, error) {
	const where = `WHERE status = 'COMPLETED' AND next_dose_due IS NOT NULL AND next_dose_due <= $1`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccination `+where, day).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaccCols+` FROM vaccination `+where+`
		ORDER BY next_dose_due, id
		LIMIT NULLIF($2, 0) OFFSET $3`, day, max(limit, 0), max(offset, 0))
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Vaccination, error) {
	v, err := scanVacc(r.conn(ctx).QueryRow(ctx, `
		UPDATE vaccination SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+vaccCols, id, string(status)))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("vaccination %s: %w", id, ErrNotFound)
	}
	return v, err
}
