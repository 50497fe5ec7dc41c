package timeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetehr/vetehr/internal/domain/directory"
	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/domain/hospitalization"
	"github.com/vetehr/vetehr/internal/domain/surgery"
	"github.com/vetehr/vetehr/internal/domain/vaccination"
)

// -- Stub sources --

type consultations struct {
	items []*episode.Consultation
	err   error
	block bool
}

func (s *consultations) ListConsultationsByPatient(ctx context.Context, _ uuid.UUID) ([]*episode.Consultation, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.items, s.err
}

type hospitalizations struct {
	items []*hospitalization.Hospitalization
	err   error
}

func (s *hospitalizations) AllForPatient(context.Context, uuid.UUID) ([]*hospitalization.Hospitalization, error) {
	return s.items, s.err
}

type surgeries struct {
	items []*surgery.Surgery
	err   error
}

func (s *surgeries) AllForPatient(context.Context, uuid.UUID) ([]*surgery.Surgery, error) {
	return s.items, s.err
}

type vaccinations struct {
	items []*vaccination.Vaccination
	err   error
}

func (s *vaccinations) AllForPatient(context.Context, uuid.UUID) ([]*vaccination.Vaccination, error) {
	return s.items, s.err
}

type staffNames map[string]string

func (s staffNames) StaffName(_ context.Context, id string) (string, error) {
	if n, ok := s[id]; ok {
		return n, nil
	}
	return "", fmt.Errorf("staff %s: %w", id, directory.ErrNotFound)
}

type patientLookup struct {
	p   *directory.Patient
	err error
}

func (l patientLookup) Patient(context.Context, uuid.UUID) (*directory.Patient, error) {
	return l.p, l.err
}

type sources struct {
	c *consultations
	h *hospitalizations
	s *surgeries
	v *vaccinations
}

func newSources() sources {
	return sources{&consultations{}, &hospitalizations{}, &surgeries{}, &vaccinations{}}
}

func (s sources) aggregator() *Aggregator {
	return NewAggregator(s.c, s.h, s.s, s.v)
}

var day = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// -- Tests --

func TestBuildHistory_Ordering(t *testing.T) {
	src := newSources()
	consultID := uuid.New()
	src.c.items = []*episode.Consultation{{ID: consultID, DoctorID: "vet-1", StartTime: day, Status: episode.ConsultationCompleted}}
	src.h.items = []*hospitalization.Hospitalization{{ID: uuid.New(), AttendingID: "vet-1", Reason: "Parvovirus", AdmittedAt: day}}
	surgA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	surgB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	src.s.items = []*surgery.Surgery{
		{ID: surgB, ProcedureName: "Ovariohysterectomy", ScheduledDate: day},
		{ID: surgA, ProcedureName: "Dental cleaning", ScheduledDate: day},
	}
	src.v.items = []*vaccination.Vaccination{
		{ID: uuid.New(), VaccineName: "Rabies", AdministrationDate: day.Add(time.Hour)},
		{ID: uuid.New(), VaccineName: "DHPP", AdministrationDate: day.AddDate(-1, 0, 0)},
	}

	report, err := src.aggregator().BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Partial || len(report.Warnings) != 0 {
		t.Errorf("expected complete report, got %+v", report.Warnings)
	}

	var got []string
	for _, e := range report.Entries {
		got = append(got, e.Summary)
	}
	want := []string{
		"Vaccination: Rabies",
		"Consultation",
		"Hospitalized: Parvovirus",
		"Dental cleaning",
		"Ovariohysterectomy",
		"Vaccination: DHPP",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("unexpected order:\n got  %v\n want %v", got, want)
	}
	if report.Entries[1].RecordID != consultID {
		t.Error("expected consultation to win the timestamp tie")
	}
}

func TestBuildHistory_PartialFailure(t *testing.T) {
	src := newSources()
	src.v.items = []*vaccination.Vaccination{{ID: uuid.New(), VaccineName: "Rabies", AdministrationDate: day}}
	src.s.err = errors.New("surgery store offline")

	report, err := src.aggregator().BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected partial result, got %v", err)
	}
	if !report.Partial {
		t.Error("expected Partial")
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Source != string(KindSurgery) {
		t.Errorf("expected one surgery warning, got %+v", report.Warnings)
	}
	if len(report.Entries) != 1 {
		t.Errorf("expected the vaccination entry, got %d entries", len(report.Entries))
	}
}

func TestBuildHistory_AllSourcesFail(t *testing.T) {
	src := newSources()
	boom := errors.New("down")
	src.c.err, src.h.err, src.s.err, src.v.err = boom, boom, boom, boom

	if _, err := src.aggregator().BuildHistory(context.Background(), uuid.New()); !errors.Is(err, ErrHistoryUnavailable) {
		t.Errorf("expected ErrHistoryUnavailable, got %v", err)
	}
}

func TestBuildHistory_SourceTimeout(t *testing.T) {
	src := newSources()
	src.c.block = true
	agg := src.aggregator()
	agg.SetSourceTimeout(20 * time.Millisecond)

	report, err := agg.BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Partial || report.Warnings[0].Source != string(KindConsultation) {
		t.Errorf("expected consultation timeout warning, got %+v", report.Warnings)
	}
}

func TestBuildHistory_ParentCancelled(t *testing.T) {
	src := newSources()
	src.c.block = true
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := src.aggregator().BuildHistory(ctx, uuid.New())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected prompt return on cancellation")
	}
}

func TestBuildHistory_ActorsAndPatient(t *testing.T) {
	src := newSources()
	src.s.items = []*surgery.Surgery{{ID: uuid.New(), SurgeonID: "vet-1", ProcedureName: "Mass removal", ScheduledDate: day}}
	src.v.items = []*vaccination.Vaccination{{ID: uuid.New(), VeterinarianID: "locum-7", VaccineName: "Rabies", AdministrationDate: day}}
	agg := src.aggregator()
	agg.SetStaffDirectory(staffNames{"vet-1": "Dr. Ana Ruiz"})
	agg.SetPatientDirectory(patientLookup{err: errors.New("cache and database unavailable")})

	report, err := agg.BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Entries[0].ActorName != "Dr. Ana Ruiz" {
		t.Errorf("expected resolved name, got %q", report.Entries[0].ActorName)
	}
	if report.Entries[1].ActorName != "locum-7" {
		t.Errorf("expected id fallback, got %q", report.Entries[1].ActorName)
	}
	if report.Partial {
		t.Error("patient lookup failure must not mark the report partial")
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Source != "PATIENT" {
		t.Errorf("expected patient warning, got %+v", report.Warnings)
	}
}

func TestBuildHistory_MonitoringLimit(t *testing.T) {
	src := newSources()
	h := &hospitalization.Hospitalization{ID: uuid.New(), Reason: "Pancreatitis", AdmittedAt: day}
	for i := 0; i < 5; i++ {
		h.Monitoring = append(h.Monitoring, hospitalization.Monitoring{
			ID: uuid.New(), RecordedAt: day.Add(time.Duration(i) * time.Hour), HeartRate: intPtr(100 + i),
		})
	}
	src.h.items = []*hospitalization.Hospitalization{h}

	report, err := src.aggregator().BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	d := report.Entries[0].Details.(HospitalizationDetails)
	if len(d.Monitoring) != DefaultMonitoringLimit {
		t.Fatalf("expected %d readings, got %d", DefaultMonitoringLimit, len(d.Monitoring))
	}
	if *d.Monitoring[0].HeartRate != 104 {
		t.Errorf("expected newest reading first, got %d", *d.Monitoring[0].HeartRate)
	}
	if *h.Monitoring[0].HeartRate != 100 {
		t.Error("source monitoring order was modified")
	}
}

func TestSort_RecordIDTieBreak(t *testing.T) {
	a := uuid.MustParse("10000000-0000-0000-0000-000000000000")
	b := uuid.MustParse("20000000-0000-0000-0000-000000000000")
	entries := []Entry{
		{Timestamp: day, Kind: KindVaccination, RecordID: b},
		{Timestamp: day, Kind: KindVaccination, RecordID: a},
		{Timestamp: day, Kind: KindSurgery, RecordID: b},
	}
	Sort(entries)
	if entries[0].Kind != KindSurgery || entries[1].RecordID != a || entries[2].RecordID != b {
		t.Errorf("unexpected order: %+v", entries)
	}
}

func TestBuildHistory_Idempotent(t *testing.T) {
	src := newSources()
	src.c.items = []*episode.Consultation{
		{ID: uuid.New(), DoctorID: "vet-1", StartTime: day, PhysicalExam: strPtr(`{"general": {"heart_rate": 120}}`)},
		{ID: uuid.New(), DoctorID: "vet-2", StartTime: day.Add(-time.Hour)},
	}
	src.s.items = []*surgery.Surgery{{ID: uuid.New(), ProcedureName: "Castration", ScheduledDate: day}}
	src.v.items = []*vaccination.Vaccination{{ID: uuid.New(), VaccineName: "Rabies", AdministrationDate: day}}
	agg := src.aggregator()
	agg.SetStaffDirectory(staffNames{"vet-1": "Dr. Ana Ruiz"})
	patientID := uuid.New()

	first, err := agg.BuildHistory(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := agg.BuildHistory(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated builds differ:\n first  %+v\n second %+v", first.Entries, second.Entries)
	}
}

func TestBuildHistory_MalformedExamKeepsOthers(t *testing.T) {
	src := newSources()
	broken := `{"general": {"eyes": 5}`
	src.c.items = []*episode.Consultation{
		{ID: uuid.New(), StartTime: day, PhysicalExam: strPtr(broken)},
		{ID: uuid.New(), StartTime: day.Add(-24 * time.Hour), PhysicalExam: strPtr(`{"ophthalmological": {"cornea": {"od": ["ulcer"]}}}`)},
		{ID: uuid.New(), StartTime: day.Add(-48 * time.Hour)},
	}

	report, err := src.aggregator().BuildHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Partial {
		t.Error("a malformed exam must not mark the report partial")
	}
	if len(report.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(report.Entries))
	}

	examErrors := 0
	for _, e := range report.Entries {
		if e.Details.(ConsultationDetails).ExamError {
			examErrors++
		}
	}
	if examErrors != 1 {
		t.Errorf("expected exactly one exam error, got %d", examErrors)
	}
	d := report.Entries[0].Details.(ConsultationDetails)
	if !d.ExamError || d.ExamRaw != broken {
		t.Errorf("expected the newest entry to carry the raw exam, got %+v", d)
	}
	if ok := report.Entries[1].Details.(ConsultationDetails); ok.Exam == nil || len(ok.Exam.Specialties) != 1 {
		t.Errorf("expected the valid exam summary, got %+v", ok.Exam)
	}
}
