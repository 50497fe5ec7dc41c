package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetehr/vetehr/internal/platform/db"
)

// Constraint names from migrations/002_visits.sql and 003_consultations.sql.
const (
	constraintOneActiveVisit      = "visit_one_active_per_patient"
	constraintOneConsultationPerV = "consultation_visit_id_key"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

const visitCols = `id, patient_id, arrival_time, status, priority, reason,
	weight_kg, temperature_c, consultation_id, hospitalization_id, payment,
	closed_at, created_at, updated_at`

func (r *repoPG) CreateVisit(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit (id, patient_id, arrival_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		v.ID, v.PatientID, v.ArrivalTime, string(v.Status),
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if db.IsUniqueViolation(err, constraintOneActiveVisit) {
		return ErrDuplicateActiveVisit
	}
	return err
}

func (r *repoPG) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	return v, err
}

func (r *repoPG) ListActiveVisits(ctx context.Context) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visit
		WHERE status NOT IN ('DISCHARGED', 'HOSPITALIZED', 'CANCELLED')
		ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 WHEN 'LOW' THEN 2 ELSE 3 END,
			arrival_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, c Change) (*Visit, bool, error) {
	from := make([]string, len(c.From))
	for i, s := range c.From {
		from[i] = string(s)
	}
	var priority *string
	if c.Priority != nil {
		p := string(*c.Priority)
		priority = &p
	}
	var weight, temperature *float64
	if c.Vitals != nil {
		weight, temperature = c.Vitals.WeightKg, c.Vitals.TemperatureC
	}
	var payment []byte
	if c.Payment != nil {
		var err error
		if payment, err = json.Marshal(c.Payment); err != nil {
			return nil, false, fmt.Errorf("encode payment: %w", err)
		}
	}

	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `
		UPDATE visit SET
			status = $3,
			reason = COALESCE($4, reason),
			priority = COALESCE($5, priority),
			weight_kg = CASE WHEN $6 THEN $7 ELSE weight_kg END,
			temperature_c = CASE WHEN $6 THEN $8 ELSE temperature_c END,
			consultation_id = CASE WHEN $9 THEN NULL ELSE COALESCE($10, consultation_id) END,
			payment = COALESCE($11, payment),
			closed_at = CASE WHEN $12 THEN NOW() ELSE closed_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+visitCols,
		id, from, string(c.To),
		c.Reason, priority,
		c.Vitals != nil, weight, temperature,
		c.UnlinkConsultation, c.LinkConsultation,
		payment, c.To.Terminal(),
	))
	if err == nil {
		return v, true, nil
	}
	if !db.IsNoRows(err) {
		return nil, false, err
	}

	current, err := r.GetVisit(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *repoPG) LinkHospitalization(ctx context.Context, visitID, hospitalizationID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE visit SET hospitalization_id = $2, updated_at = NOW() WHERE id = $1`,
		visitID, hospitalizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visit %s: %w", visitID, ErrNotFound)
	}
	return nil
}

// Status History
func (r *repoPG) AddStatusHistory(ctx context.Context, h *StatusHistory) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_status_history (id, visit_id, from_status, to_status, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.VisitID, string(h.From), string(h.To), h.ActorID, h.At,
	)
	return err
}

func (r *repoPG) GetStatusHistory(ctx context.Context, visitID uuid.UUID) ([]*StatusHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, from_status, to_status, actor_id, at
		FROM visit_status_history WHERE visit_id = $1 ORDER BY at, seq`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*StatusHistory
	for rows.Next() {
		var h StatusHistory
		var from, to string
		if err := rows.Scan(&h.ID, &h.VisitID, &from, &to, &h.ActorID, &h.At); err != nil {
			return nil, err
		}
		h.From, h.To = Status(from), Status(to)
		history = append(history, &h)
	}
	return history, rows.Err()
}

// Consultations
const consultationCols = `id, visit_id, patient_id, doctor_id, start_time, end_time,
	status, physical_exam, created_at, updated_at`

func (r *repoPG) CreateConsultation(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation (id, visit_id, patient_id, doctor_id, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		c.ID, c.VisitID, c.PatientID, c.DoctorID, c.StartTime, string(c.Status),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err, constraintOneConsultationPerV) {
		return &InvalidTransitionError{Op: "start consultation", Required: []Status{StatusWaiting}, Actual: StatusInConsultation}
	}
	return err
}

func (r *repoPG) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := r.consultationHeader(ctx, `SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*Consultation{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repoPG) LockConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return r.consultationHeader(ctx, `SELECT `+consultationCols+` FROM consultation WHERE id = $1 FOR SHARE`, id)
}

func (r *repoPG) consultationHeader(ctx context.Context, sql string, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("consultation %s: %w", id, ErrNotFound)
	}
	return c, err
}

func (r *repoPG) CloseConsultation(ctx context.Context, visitID uuid.UUID, at time.Time) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultation SET status = 'COMPLETED', end_time = $2, updated_at = NOW()
		WHERE visit_id = $1 AND status = 'IN_PROGRESS'
		RETURNING `+consultationCols, visitID, at))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("open consultation for visit %s: %w", visitID, ErrNotFound)
	}
	return c, err
}

func (r *repoPG) SetPhysicalExam(ctx context.Context, consultationID uuid.UUID, doc string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation SET physical_exam = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'IN_PROGRESS'`, consultationID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConsultationClosed
	}
	return nil
}

func (r *repoPG) ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+consultationCols+` FROM consultation
		WHERE patient_id = $1 ORDER BY start_time DESC`, patientID)
	if err != nil {
		return nil, err
	}
	var cons []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		cons = append(cons, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, cons); err != nil {
		return nil, err
	}
	return cons, nil
}

// loadChildren fills the child collections of cons with one query per table.
func (r *repoPG) loadChildren(ctx context.Context, cons []*Consultation) error {
	if len(cons) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(cons))
	byID := make(map[uuid.UUID]*Consultation, len(cons))
	for i, c := range cons {
		ids[i] = c.ID
		byID[c.ID] = c
		c.Diagnoses, c.VitalSigns, c.Prescriptions, c.LabRequests =
			[]Diagnosis{}, []VitalSigns{}, []Prescription{}, []LabRequest{}
	}

	q := r.conn(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, consultation_id, code, description, kind, notes, created_at
		FROM consultation_diagnosis WHERE consultation_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("load diagnoses: %w", err)
	}
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.ConsultationID, &d.Code, &d.Description, &d.Kind, &d.Notes, &d.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		c := byID[d.ConsultationID]
		c.Diagnoses = append(c.Diagnoses, d)
	}
	rows.Close()

	rows, err = q.Query(ctx, `
		SELECT id, consultation_id, recorded_at, weight_kg, temperature_c, heart_rate, respiratory_rate, notes
		FROM consultation_vital_signs WHERE consultation_id = ANY($1) ORDER BY recorded_at, id`, ids)
	if err != nil {
		return fmt.Errorf("load vital signs: %w", err)
	}
	for rows.Next() {
		var vs VitalSigns
		if err := rows.Scan(&vs.ID, &vs.ConsultationID, &vs.RecordedAt, &vs.WeightKg, &vs.TemperatureC,
			&vs.HeartRate, &vs.RespiratoryRate, &vs.Notes); err != nil {
			rows.Close()
			return err
		}
		c := byID[vs.ConsultationID]
		c.VitalSigns = append(c.VitalSigns, vs)
	}
	rows.Close()

	rows, err = q.Query(ctx, `
		SELECT id, consultation_id, test_code, test_name, urgent, notes, created_at
		FROM lab_request WHERE consultation_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("load lab requests: %w", err)
	}
	for rows.Next() {
		var l LabRequest
		if err := rows.Scan(&l.ID, &l.ConsultationID, &l.TestCode, &l.TestName, &l.Urgent, &l.Notes, &l.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		c := byID[l.ConsultationID]
		c.LabRequests = append(c.LabRequests, l)
	}
	rows.Close()

	rows, err = q.Query(ctx, `
		SELECT p.id, p.consultation_id, p.notes, p.created_at,
			i.id, i.medication_id, i.medication_name, i.dose, i.frequency, i.route, i.duration_days, i.instructions
		FROM prescription p
		JOIN prescription_item i ON i.prescription_id = p.id
		WHERE p.consultation_id = ANY($1)
		ORDER BY p.created_at, p.id, i.position`, ids)
	if err != nil {
		return fmt.Errorf("load prescriptions: %w", err)
	}
	defer rows.Close()
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var p Prescription
		var it PrescriptionItem
		if err := rows.Scan(&p.ID, &p.ConsultationID, &p.Notes, &p.CreatedAt,
			&it.ID, &it.MedicationID, &it.MedicationName, &it.Dose, &it.Frequency, &it.Route,
			&it.DurationDays, &it.Instructions); err != nil {
			return err
		}
		it.PrescriptionID = p.ID
		c := byID[p.ConsultationID]
		n, seen := index[p.ID]
		if !seen {
			n = len(c.Prescriptions)
			index[p.ID] = n
			c.Prescriptions = append(c.Prescriptions, p)
		}
		c.Prescriptions[n].Items = append(c.Prescriptions[n].Items, it)
	}
	return rows.Err()
}

// Child records
func (r *repoPG) AddDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation_diagnosis (id, consultation_id, code, description, kind, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		d.ID, d.ConsultationID, d.Code, d.Description, d.Kind, d.Notes,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) AddVitalSigns(ctx context.Context, vs *VitalSigns) error {
	vs.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation_vital_signs (id, consultation_id, recorded_at, weight_kg, temperature_c,
			heart_rate, respiratory_rate, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		vs.ID, vs.ConsultationID, vs.RecordedAt, vs.WeightKg, vs.TemperatureC,
		vs.HeartRate, vs.RespiratoryRate, vs.Notes,
	)
	return err
}

func (r *repoPG) AddPrescription(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	q := r.conn(ctx)
	if err := q.QueryRow(ctx, `
		INSERT INTO prescription (id, consultation_id, notes) VALUES ($1, $2, $3)
		RETURNING created_at`, p.ID, p.ConsultationID, p.Notes,
	).Scan(&p.CreatedAt); err != nil {
		return err
	}
	for i := range p.Items {
		it := &p.Items[i]
		it.ID = uuid.New()
		it.PrescriptionID = p.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO prescription_item (id, prescription_id, position, medication_id, medication_name,
				dose, frequency, route, duration_days, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			it.ID, p.ID, i, it.MedicationID, it.MedicationName,
			it.Dose, it.Frequency, it.Route, it.DurationDays, it.Instructions,
		); err != nil {
			return fmt.Errorf("insert prescription item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) AddLabRequest(ctx context.Context, l *LabRequest) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_request (id, consultation_id, test_code, test_name, urgent, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		l.ID, l.ConsultationID, l.TestCode, l.TestName, l.Urgent, l.Notes,
	).Scan(&l.CreatedAt)
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var status, priority string
	var weight, temperature *float64
	var payment []byte
	err := row.Scan(
		&v.ID, &v.PatientID, &v.ArrivalTime, &status, &priority, &v.Reason,
		&weight, &temperature, &v.ConsultationID, &v.HospitalizationID, &payment,
		&v.ClosedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status, v.Priority = Status(status), Priority(priority)
	if weight != nil || temperature != nil {
		v.Vitals = &Vitals{WeightKg: weight, TemperatureC: temperature}
	}
	if len(payment) > 0 {
		v.Payment = &PaymentSummary{}
		if err := json.Unmarshal(payment, v.Payment); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
	}
	return &v, nil
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	var status string
	err := row.Scan(
		&c.ID, &c.VisitID, &c.PatientID, &c.DoctorID, &c.StartTime, &c.EndTime,
		&status, &c.PhysicalExam, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = ConsultationStatus(status)
	return &c, nil
}
