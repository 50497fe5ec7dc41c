package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vetehr/vetehr/internal/domain/directory"
	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/domain/hospitalization"
	"github.com/vetehr/vetehr/internal/domain/surgery"
	"github.com/vetehr/vetehr/internal/domain/vaccination"
)

const (
	DefaultSourceTimeout   = 5 * time.Second
	DefaultMonitoringLimit = 3
)

// ConsultationSource is satisfied by *episode.Service.
type ConsultationSource interface {
	ListConsultationsByPatient(ctx context.Context, patientID uuid.UUID) ([]*episode.Consultation, error)
}

type HospitalizationSource interface {
	AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*hospitalization.Hospitalization, error)
}

type SurgerySource interface {
	AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*surgery.Surgery, error)
}

type VaccinationSource interface {
	AllForPatient(ctx context.Context, patientID uuid.UUID) ([]*vaccination.Vaccination, error)
}

// StaffDirectory resolves actor ids to display names.
type StaffDirectory interface {
	StaffName(ctx context.Context, id string) (string, error)
}

// PatientDirectory supplies the patient summary shown with a report.
type PatientDirectory interface {
	Patient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
}

// Aggregator builds a patient's history from independently stored record
// kinds. It only reads from its sources.
type Aggregator struct {
	consultations    ConsultationSource
	hospitalizations HospitalizationSource
	surgeries        SurgerySource
	vaccinations     VaccinationSource

	staff    StaffDirectory
	patients PatientDirectory

	sourceTimeout   time.Duration
	monitoringLimit int
	logger          zerolog.Logger
}

func NewAggregator(c ConsultationSource, h HospitalizationSource, s SurgerySource, v VaccinationSource) *Aggregator {
	return &Aggregator{
		consultations:    c,
		hospitalizations: h,
		surgeries:        s,
		vaccinations:     v,
		sourceTimeout:    DefaultSourceTimeout,
		monitoringLimit:  DefaultMonitoringLimit,
		logger:           zerolog.Nop(),
	}
}

func (a *Aggregator) SetStaffDirectory(d StaffDirectory) {
	a.staff = d
}

func (a *Aggregator) SetPatientDirectory(d PatientDirectory) {
	a.patients = d
}

// SetSourceTimeout bounds each source fetch. Non-positive values are ignored.
func (a *Aggregator) SetSourceTimeout(d time.Duration) {
	if d > 0 {
		a.sourceTimeout = d
	}
}

// SetMonitoringLimit sets how many monitoring readings a hospitalization
// entry carries. Non-positive values are ignored.
func (a *Aggregator) SetMonitoringLimit(n int) {
	if n > 0 {
		a.monitoringLimit = n
	}
}

func (a *Aggregator) SetLogger(l zerolog.Logger) {
	a.logger = l
}

// fetch loads and normalizes the records of one kind.
type fetch func(ctx context.Context, patientID uuid.UUID) ([]Entry, error)

type sourceResult struct {
	entries []Entry
	err     error
}

func (a *Aggregator) fetchers() map[Kind]fetch {
	return map[Kind]fetch{
		KindConsultation: func(ctx context.Context, id uuid.UUID) ([]Entry, error) {
			items, err := a.consultations.ListConsultationsByPatient(ctx, id)
			if err != nil {
				return nil, err
			}
			out := make([]Entry, 0, len(items))
			for _, c := range items {
				out = append(out, fromConsultation(c))
			}
			return out, nil
		},
		KindHospitalization: func(ctx context.Context, id uuid.UUID) ([]Entry, error) {
			items, err := a.hospitalizations.AllForPatient(ctx, id)
			if err != nil {
				return nil, err
			}
			out := make([]Entry, 0, len(items))
			for _, h := range items {
				out = append(out, fromHospitalization(h, a.monitoringLimit))
			}
			return out, nil
		},
		KindSurgery: func(ctx context.Context, id uuid.UUID) ([]Entry, error) {
			items, err := a.surgeries.AllForPatient(ctx, id)
			if err != nil {
				return nil, err
			}
			out := make([]Entry, 0, len(items))
			for _, s := range items {
				out = append(out, fromSurgery(s))
			}
			return out, nil
		},
		KindVaccination: func(ctx context.Context, id uuid.UUID) ([]Entry, error) {
			items, err := a.vaccinations.AllForPatient(ctx, id)
			if err != nil {
				return nil, err
			}
			out := make([]Entry, 0, len(items))
			for _, v := range items {
				out = append(out, fromVaccination(v))
			}
			return out, nil
		},
	}
}

// BuildHistory merges every record of the patient into one list, newest
// first. A failed source is reported as a warning; ErrHistoryUnavailable is
// returned only when all of them fail.
func (a *Aggregator) BuildHistory(ctx context.Context, patientID uuid.UUID) (*Report, error) {
	fetchers := a.fetchers()
	results := make([]sourceResult, len(Kinds))

	var g errgroup.Group
	for i, kind := range Kinds {
		i, fn := i, fetchers[kind]
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()
			entries, err := fn(fctx, patientID)
			if err == nil && fctx.Err() != nil {
				err = fctx.Err()
			}
			results[i] = sourceResult{entries: entries, err: err}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	report := &Report{PatientID: patientID, Entries: []Entry{}}
	failed := 0
	for i, kind := range Kinds {
		r := results[i]
		if r.err != nil {
			failed++
			report.Partial = true
			report.Warnings = append(report.Warnings, Warning{Source: string(kind), Message: r.err.Error()})
			a.logger.Warn().Err(r.err).
				Str("patient_id", patientID.String()).
				Str("source", string(kind)).
				Msg("history source failed")
			continue
		}
		report.Entries = append(report.Entries, r.entries...)
	}
	if failed == len(Kinds) {
		return nil, ErrHistoryUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Sort(report.Entries)
	a.resolveActors(ctx, report.Entries)

	if a.patients != nil {
		p, err := a.patients.Patient(ctx, patientID)
		if err != nil {
			report.Warnings = append(report.Warnings, Warning{Source: "PATIENT", Message: err.Error()})
		} else {
			report.Patient = p
		}
	}
	return report, nil
}

// Sort orders entries newest first, then by kind, then by record id.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if pa, pb := a.Kind.priority(), b.Kind.priority(); pa != pb {
			return pa < pb
		}
		return a.RecordID.String() < b.RecordID.String()
	})
}

// resolveActors fills ActorName once per distinct id. Unknown ids keep the
// id as their name.
func (a *Aggregator) resolveActors(ctx context.Context, entries []Entry) {
	names := make(map[string]string)
	for i := range entries {
		id := entries[i].ActorID
		if id == "" {
			continue
		}
		name, ok := names[id]
		if !ok {
			name = id
			if a.staff != nil {
				if n, err := a.staff.StaffName(ctx, id); err == nil && n != "" {
					name = n
				} else if err != nil {
					a.logger.Debug().Err(err).Str("actor_id", id).Msg("staff name not resolved")
				}
			}
			names[id] = name
		}
		entries[i].ActorName = name
	}
}
