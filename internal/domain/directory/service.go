package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cache is the read-through store in front of the repository. It is
// satisfied by *cache.Cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	repo   Repository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop()}
}

// SetCache enables caching of directory entries for ttl.
func (s *Service) SetCache(c Cache, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

func patientKey(id uuid.UUID) string { return "patient:" + id.String() }
func staffKey(id string) string      { return "staff:" + id }

// Patient returns the patient with its owner. Cache failures degrade to a
// repository read.
func (s *Service) Patient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	if s.cachedGet(ctx, patientKey(id), &p) {
		return &p, nil
	}
	got, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachedSet(ctx, patientKey(id), got)
	return got, nil
}

// PatientExists reports false without error for unknown patients.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.Patient(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// StaffName resolves a staff id to its display name.
func (s *Service) StaffName(ctx context.Context, id string) (string, error) {
	var st Staff
	if s.cachedGet(ctx, staffKey(id), &st) {
		return st.DisplayName, nil
	}
	got, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return "", err
	}
	s.cachedSet(ctx, staffKey(id), got)
	return got.DisplayName, nil
}

// InvalidatePatient drops a cached patient after an external update.
func (s *Service) InvalidatePatient(ctx context.Context, id uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, patientKey(id))
}

func (s *Service) cachedGet(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("directory cache read failed")
		return false
	}
	return hit
}

func (s *Service) cachedSet(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
}
