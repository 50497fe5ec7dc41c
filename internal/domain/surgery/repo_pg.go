package surgery

import (
	"context"
	"fmt"

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

const surgeryCols = `id, patient_id, visit_id, surgeon_id, procedure_name, anesthesia_type,
	scheduled_date, duration_minutes, status, pre_op_notes, post_op_notes,
	started_at, ended_at, cancel_reason, created_at, updated_at`

func scanSurgery(row pgx.Row) (*Surgery, error) {
	var s Surgery
	var status string
	err := row.Scan(&s.ID, &s.PatientID, &s.VisitID, &s.SurgeonID, &s.ProcedureName, &s.AnesthesiaType,
		&s.ScheduledDate, &s.DurationMinutes, &status, &s.PreOpNotes, &s.PostOpNotes,
		&s.StartedAt, &s.EndedAt, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt)
	s.Status = Status(status)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Surgery) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO surgery (id, patient_id, visit_id, surgeon_id, procedure_name, anesthesia_type,
			scheduled_date, duration_minutes, status, pre_op_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.VisitID, s.SurgeonID, s.ProcedureName, s.AnesthesiaType,
		s.ScheduledDate, s.DurationMinutes, string(s.Status), s.PreOpNotes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	s, err := scanSurgery(r.conn(ctx).QueryRow(ctx, `SELECT `+surgeryCols+` FROM surgery WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("surgery %s: %w", id, ErrNotFound)
	}
	return s, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Surgery, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM surgery WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+surgeryCols+` FROM surgery
		WHERE patient_id = $1
		ORDER BY scheduled_date DESC, id
		LIMIT NULLIF($2, 0) OFFSET $3`, patientID, max(limit, 0), max(offset, 0))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Surgery
	for rows.Next() {
		s, err := scanSurgery(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Surgery, error) {
	s, err := scanSurgery(r.conn(ctx).QueryRow(ctx, `
		UPDATE surgery SET
			status = $3,
			duration_minutes = COALESCE($4, duration_minutes),
			post_op_notes = COALESCE($5, post_op_notes),
			cancel_reason = COALESCE($6, cancel_reason),
			started_at = CASE WHEN $3 = 'IN_PROGRESS' THEN NOW() ELSE started_at END,
			ended_at = CASE WHEN $3 IN ('COMPLETED', 'CANCELLED') THEN NOW() ELSE ended_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+surgeryCols,
		id, string(u.From), string(u.To), u.DurationMinutes, u.PostOpNotes, u.CancelReason))
	if db.IsNoRows(err) {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrStatusConflict
	}
	return s, err
}
