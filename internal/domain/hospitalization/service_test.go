package hospitalization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*Hospitalization
	afterGet func(id uuid.UUID)
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Hospitalization)}
}

func (m *mockRepo) Create(_ context.Context, h *Hospitalization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.items {
		if other.VisitID == h.VisitID {
			return ErrDuplicateAdmission
		}
	}
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	m.items[h.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospitalization, error) {
	m.mu.Lock()
	h, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("hospitalization %s: %w", id, ErrNotFound)
	}
	cp := *h
	cp.Monitoring = append([]Monitoring{}, h.Monitoring...)
	hook := m.afterGet
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Hospitalization, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Hospitalization
	for _, h := range m.items {
		if h.PatientID == patientID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdmittedAt.After(out[j].AdmittedAt) })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) AddMonitoring(_ context.Context, mon *Monitoring) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.items[mon.HospitalizationID]
	if !ok {
		return ErrNotFound
	}
	if h.Status != StatusActive {
		return ErrAlreadyDischarged
	}
	mon.ID = uuid.New()
	h.Monitoring = append(h.Monitoring, *mon)
	return nil
}

func (m *mockRepo) Discharge(_ context.Context, id uuid.UUID, at time.Time, notes string) (*Hospitalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if h.Status != StatusActive {
		return nil, ErrAlreadyDischarged
	}
	h.Status = StatusDischarged
	h.DischargedAt = &at
	h.DischargeNotes = notes
	cp := *h
	return &cp, nil
}

// -- Tests --

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo), repo
}

func admission() episode.AdmissionRequest {
	return episode.AdmissionRequest{
		VisitID:     uuid.New(),
		PatientID:   uuid.New(),
		AttendingID: "vet-1",
		Reason:      " parvovirus ",
		Location:    "isolation 2",
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestCreate(t *testing.T) {
	svc, repo := newTestService()
	req := admission()

	id, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := repo.items[id]
	if h.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", h.Status)
	}
	if h.Reason != "parvovirus" {
		t.Errorf("expected trimmed reason, got %q", h.Reason)
	}
	if h.AdmittedAt.IsZero() {
		t.Error("expected admitted_at defaulted")
	}

	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrDuplicateAdmission) {
		t.Errorf("expected ErrDuplicateAdmission on second admission, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*episode.AdmissionRequest)
	}{
		{"missing visit", func(r *episode.AdmissionRequest) { r.VisitID = uuid.Nil }},
		{"missing reason", func(r *episode.AdmissionRequest) { r.Reason = "  " }},
		{"missing location", func(r *episode.AdmissionRequest) { r.Location = "" }},
		{"missing attending", func(r *episode.AdmissionRequest) { r.AttendingID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			req := admission()
			tt.mutate(&req)
			if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAddMonitoring(t *testing.T) {
	svc, _ := newTestService()
	ctx := auth.WithPrincipal(context.Background(), "tech-7", []string{auth.RoleTechnician})
	id, _ := svc.Create(ctx, admission())

	m := Monitoring{TemperatureC: floatPtr(39.4), HeartRate: intPtr(120)}
	if err := svc.AddMonitoring(ctx, id, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RecordedBy != "tech-7" {
		t.Errorf("expected recorder defaulted to caller, got %q", m.RecordedBy)
	}
	h, _ := svc.Get(ctx, id)
	if len(h.Monitoring) != 1 {
		t.Errorf("expected 1 reading, got %d", len(h.Monitoring))
	}

	if err := svc.AddMonitoring(ctx, id, &Monitoring{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty reading, got %v", err)
	}
	early := Monitoring{Notes: "x", RecordedAt: h.AdmittedAt.Add(-time.Hour)}
	if err := svc.AddMonitoring(ctx, id, &early); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for reading before admission, got %v", err)
	}
}

func TestAddMonitoring_AfterDischarge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Create(ctx, admission())
	if _, err := svc.Discharge(ctx, id, "recovered"); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddMonitoring(ctx, id, &Monitoring{Notes: "late"}); !errors.Is(err, ErrAlreadyDischarged) {
		t.Errorf("expected ErrAlreadyDischarged, got %v", err)
	}
}

func TestAddMonitoring_DischargedBetweenReadAndInsert(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	id, _ := svc.Create(ctx, admission())

	repo.afterGet = func(id uuid.UUID) {
		repo.afterGet = nil
		if _, err := repo.Discharge(ctx, id, time.Now(), "transferred"); err != nil {
			t.Errorf("discharge: %v", err)
		}
	}

	if err := svc.AddMonitoring(ctx, id, &Monitoring{HeartRate: intPtr(110)}); !errors.Is(err, ErrAlreadyDischarged) {
		t.Fatalf("expected ErrAlreadyDischarged, got %v", err)
	}
	h, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != StatusDischarged || len(h.Monitoring) != 0 {
		t.Errorf("expected a discharged admission without readings, got %s with %d", h.Status, len(h.Monitoring))
	}
}

func TestDischarge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Create(ctx, admission())

	h, err := svc.Discharge(ctx, id, " eating well ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != StatusDischarged || h.DischargedAt == nil || h.DischargeNotes != "eating well" {
		t.Errorf("unexpected discharge: %+v", h)
	}
	if _, err := svc.Discharge(ctx, id, ""); !errors.Is(err, ErrAlreadyDischarged) {
		t.Errorf("expected ErrAlreadyDischarged, got %v", err)
	}
	if _, err := svc.Discharge(ctx, uuid.New(), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAllForPatient(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()
	for i := 0; i < 3; i++ {
		req := admission()
		req.PatientID = patient
		req.AdmittedAt = time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = svc.Create(ctx, admission())

	all, err := svc.AllForPatient(ctx, patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 admissions, got %d", len(all))
	}
	if all[0].AdmittedAt.Day() != 3 {
		t.Errorf("expected newest first, got %v", all[0].AdmittedAt)
	}
}

func TestLatest(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	h := &Hospitalization{}
	for i := 0; i < 5; i++ {
		h.Monitoring = append(h.Monitoring, Monitoring{RecordedAt: base.Add(time.Duration(i) * time.Hour), Notes: fmt.Sprint(i)})
	}

	got := h.Latest(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(got))
	}
	if got[0].Notes != "4" || got[2].Notes != "2" {
		t.Errorf("expected most recent first, got %v %v", got[0].Notes, got[2].Notes)
	}
	if h.Monitoring[0].Notes != "0" {
		t.Error("Latest must not reorder the admission's readings")
	}
	if len(h.Latest(10)) != 5 {
		t.Error("expected all readings when fewer than the limit")
	}
}
