package hospitalization

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

const constraintOnePerVisit = "hospitalization_visit_id_key"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// conn joins the caller's transaction when there is one, so admissions
// created during Hospitalize commit or roll back with the visit.
func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const hospCols = `id, visit_id, patient_id, attending_id, reason, location, special_care,
	admitted_at, status, discharged_at, discharge_notes, created_at, updated_at`

func scanHosp(row pgx.Row) (*Hospitalization, error) {
	var h Hospitalization
	var status string
	err := row.Scan(&h.ID, &h.VisitID, &h.PatientID, &h.AttendingID, &h.Reason, &h.Location,
		&h.SpecialCare, &h.AdmittedAt, &status, &h.DischargedAt, &h.DischargeNotes,
		&h.CreatedAt, &h.UpdatedAt)
	h.Status = Status(status)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Hospitalization) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospitalization (id, visit_id, patient_id, attending_id, reason, location,
			special_care, admitted_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		h.ID, h.VisitID, h.PatientID, h.AttendingID, h.Reason, h.Location,
		h.SpecialCare, h.AdmittedAt, string(h.Status),
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if db.IsUniqueViolation(err, constraintOnePerVisit) {
		return ErrDuplicateAdmission
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospitalization, error) {
	h, err := scanHosp(r.conn(ctx).QueryRow(ctx, `SELECT `+hospCols+` FROM hospitalization WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("hospitalization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadMonitoring(ctx, []*Hospitalization{h}); err != nil {
		return nil, err
	}
	return h, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Hospitalization, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM hospitalization WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+hospCols+` FROM hospitalization
		WHERE patient_id = $1
		ORDER BY admitted_at DESC, id
		LIMIT NULLIF($2, 0) OFFSET $3`, patientID, max(limit, 0), max(offset, 0))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Hospitalization
	for rows.Next() {
		h, err := scanHosp(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadMonitoring(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) loadMonitoring(ctx context.Context, items []*Hospitalization) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Hospitalization, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, h := range items {
		h.Monitoring = []Monitoring{}
		byID[h.ID] = h
		ids = append(ids, h.ID)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, hospitalization_id, recorded_at, temperature_c, heart_rate, respiratory_rate, notes, recorded_by
		FROM hospitalization_monitoring
		WHERE hospitalization_id = ANY($1)
		ORDER BY recorded_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m Monitoring
		if err := rows.Scan(&m.ID, &m.HospitalizationID, &m.RecordedAt, &m.TemperatureC,
			&m.HeartRate, &m.RespiratoryRate, &m.Notes, &m.RecordedBy); err != nil {
			return err
		}
		if h := byID[m.HospitalizationID]; h != nil {
			h.Monitoring = append(h.Monitoring, m)
		}
	}
	return rows.Err()
}

func (r *repoPG) AddMonitoring(ctx context.Context, m *Monitoring) error {
	m.ID = uuid.New()
	// FOR SHARE waits for a concurrent discharge and re-checks the status.
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospitalization_monitoring (id, hospitalization_id, recorded_at, temperature_c,
			heart_rate, respiratory_rate, notes, recorded_by)
		SELECT $1::uuid, h.id, $3::timestamptz, $4::numeric, $5::integer, $6::integer, $7::text, $8::text
		FROM hospitalization h
		WHERE h.id = $2 AND h.status = $9
		FOR SHARE`,
		m.ID, m.HospitalizationID, m.RecordedAt, m.TemperatureC,
		m.HeartRate, m.RespiratoryRate, m.Notes, m.RecordedBy, string(StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := r.GetByID(ctx, m.HospitalizationID); gerr != nil {
			return gerr
		}
		return ErrAlreadyDischarged
	}
	return nil
}

func (r *repoPG) Discharge(ctx context.Context, id uuid.UUID, at time.Time, notes string) (*Hospitalization, error) {
	h, err := scanHosp(r.conn(ctx).QueryRow(ctx, `
		UPDATE hospitalization
		SET status = $2, discharged_at = $3, discharge_notes = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING `+hospCols,
		id, string(StatusDischarged), at, notes, string(StatusActive)))
	if db.IsNoRows(err) {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrAlreadyDischarged
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadMonitoring(ctx, []*Hospitalization{h}); err != nil {
		return nil, err
	}
	return h, nil
}
