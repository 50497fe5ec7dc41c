package episode

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetehr/vetehr/internal/platform/events"
)

// -- Mock Repository --

// mockRepo keeps everything in memory. InTx serializes units of work the way
// row locks serialize conflicting transactions; each method is individually
// atomic under mu.
type mockRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	visits        map[uuid.UUID]*Visit
	consultations map[uuid.UUID]*Consultation
	history       []*StatusHistory

	transitionCalls int
	failTransition  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		visits:        make(map[uuid.UUID]*Visit),
		consultations: make(map[uuid.UUID]*Consultation),
	}
}

type inTxKey struct{}

func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.snapshot()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type mockState struct {
	visits        map[uuid.UUID]Visit
	consultations map[uuid.UUID]Consultation
	history       int
}

func (m *mockRepo) snapshot() mockState {
	s := mockState{
		visits:        make(map[uuid.UUID]Visit, len(m.visits)),
		consultations: make(map[uuid.UUID]Consultation, len(m.consultations)),
		history:       len(m.history),
	}
	for id, v := range m.visits {
		s.visits[id] = *v
	}
	for id, c := range m.consultations {
		s.consultations[id] = *c
	}
	return s
}

func (m *mockRepo) restore(s mockState) {
	m.visits = make(map[uuid.UUID]*Visit, len(s.visits))
	for id, v := range s.visits {
		v := v
		m.visits[id] = &v
	}
	m.consultations = make(map[uuid.UUID]*Consultation, len(s.consultations))
	for id, c := range s.consultations {
		c := c
		m.consultations[id] = &c
	}
	m.history = m.history[:s.history]
}

func (m *mockRepo) CreateVisit(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.visits {
		if other.PatientID == v.PatientID && !other.Status.Terminal() {
			return ErrDuplicateActiveVisit
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockRepo) GetVisit(_ context.Context, id uuid.UUID) (*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[id]
	if !ok {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (m *mockRepo) ListActiveVisits(_ context.Context) ([]*Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Visit
	for _, v := range m.visits {
		if !v.Status.Terminal() {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.rank() != out[j].Priority.rank() {
			return out[i].Priority.rank() < out[j].Priority.rank()
		}
		return out[i].ArrivalTime.Before(out[j].ArrivalTime)
	})
	return out, nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, c Change) (*Visit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCalls++
	if m.failTransition != nil {
		return nil, false, m.failTransition
	}
	v, ok := m.visits[id]
	if !ok {
		return nil, false, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	matched := false
	for _, from := range c.From {
		if v.Status == from {
			matched = true
		}
	}
	if !matched {
		cp := *v
		return &cp, false, nil
	}

	v.Status = c.To
	if c.Reason != nil {
		v.Reason = *c.Reason
	}
	if c.Priority != nil {
		v.Priority = *c.Priority
	}
	if c.Vitals != nil {
		vitals := *c.Vitals
		v.Vitals = &vitals
	}
	if c.UnlinkConsultation {
		v.ConsultationID = nil
	} else if c.LinkConsultation != nil {
		id := *c.LinkConsultation
		v.ConsultationID = &id
	}
	if c.Payment != nil {
		p := *c.Payment
		v.Payment = &p
	}
	v.UpdatedAt = time.Now()
	if c.To.Terminal() {
		at := v.UpdatedAt
		v.ClosedAt = &at
	}
	cp := *v
	return &cp, true, nil
}

func (m *mockRepo) LinkHospitalization(_ context.Context, visitID, hospitalizationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[visitID]
	if !ok {
		return ErrNotFound
	}
	v.HospitalizationID = &hospitalizationID
	return nil
}

func (m *mockRepo) AddStatusHistory(_ context.Context, h *StatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.New()
	cp := *h
	m.history = append(m.history, &cp)
	return nil
}

func (m *mockRepo) GetStatusHistory(_ context.Context, visitID uuid.UUID) ([]*StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*StatusHistory
	for _, h := range m.history {
		if h.VisitID == visitID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateConsultation(_ context.Context, c *Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.consultations {
		if other.VisitID == c.VisitID {
			return fmt.Errorf("duplicate consultation for visit %s", c.VisitID)
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.consultations[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return m.LockConsultation(ctx, id)
}

func (m *mockRepo) LockConsultation(_ context.Context, id uuid.UUID) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return nil, fmt.Errorf("consultation %s: %w", id, ErrNotFound)
	}
	return copyConsultation(c), nil
}

func (m *mockRepo) CloseConsultation(_ context.Context, visitID uuid.UUID, at time.Time) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.consultations {
		if c.VisitID == visitID && c.Status == ConsultationInProgress {
			c.Status = ConsultationCompleted
			end := at
			c.EndTime = &end
			return copyConsultation(c), nil
		}
	}
	return nil, fmt.Errorf("open consultation for visit %s: %w", visitID, ErrNotFound)
}

func (m *mockRepo) SetPhysicalExam(_ context.Context, consultationID uuid.UUID, doc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[consultationID]
	if !ok || c.Status != ConsultationInProgress {
		return ErrConsultationClosed
	}
	c.PhysicalExam = &doc
	return nil
}

func (m *mockRepo) ListConsultationsByPatient(_ context.Context, patientID uuid.UUID) ([]*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Consultation
	for _, c := range m.consultations {
		if c.PatientID == patientID {
			out = append(out, copyConsultation(c))
		}
	}
	return out, nil
}

func (m *mockRepo) AddDiagnosis(_ context.Context, d *Diagnosis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	c := m.consultations[d.ConsultationID]
	c.Diagnoses = append(c.Diagnoses, *d)
	return nil
}

func (m *mockRepo) AddVitalSigns(_ context.Context, vs *VitalSigns) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs.ID = uuid.New()
	c := m.consultations[vs.ConsultationID]
	c.VitalSigns = append(c.VitalSigns, *vs)
	return nil
}

func (m *mockRepo) AddPrescription(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	for i := range p.Items {
		p.Items[i].ID = uuid.New()
		p.Items[i].PrescriptionID = p.ID
	}
	c := m.consultations[p.ConsultationID]
	c.Prescriptions = append(c.Prescriptions, *p)
	return nil
}

func (m *mockRepo) AddLabRequest(_ context.Context, l *LabRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	c := m.consultations[l.ConsultationID]
	c.LabRequests = append(c.LabRequests, *l)
	return nil
}

func copyConsultation(c *Consultation) *Consultation {
	cp := *c
	cp.Diagnoses = append([]Diagnosis{}, c.Diagnoses...)
	cp.VitalSigns = append([]VitalSigns{}, c.VitalSigns...)
	cp.Prescriptions = append([]Prescription{}, c.Prescriptions...)
	cp.LabRequests = append([]LabRequest{}, c.LabRequests...)
	return &cp
}

// -- Collaborator fakes --

type fakeHospitalizations struct {
	mu       sync.Mutex
	requests []AdmissionRequest
	err      error
}

func (f *fakeHospitalizations) Create(_ context.Context, req AdmissionRequest) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.requests = append(f.requests, req)
	return uuid.New(), nil
}

type fakePatients map[uuid.UUID]bool

func (f fakePatients) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f[id], nil
}

type recordedEvent struct {
	key  string
	data VisitTransitioned
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key string, env events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	data, _ := env.Data.(VisitTransitioned)
	f.events = append(f.events, recordedEvent{key: key, data: data})
	return nil
}
