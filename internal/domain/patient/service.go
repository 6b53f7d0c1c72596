package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStale is returned by Detail when its result was discarded because the
// caller went away or a newer fetch for the same patient started meanwhile.
var ErrStale = errors.New("patient fetch superseded")

// API is the remote side of the patient service.
type API interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	CreatePatient(ctx context.Context, in NewPatient) (*Patient, error)
}

// Cache is the patient side of the shared store.
type Cache interface {
	ReplacePatientsIfAbsent(list []Patient)
	UpsertPatient(p Patient) Patient
	Patients() []Patient
	Patient(id string) (Patient, bool)
}

type Service struct {
	api    API
	cache  Cache
	logger zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	tickets map[string]uint64
}

func NewService(api API, cache Cache, logger zerolog.Logger) *Service {
	return &Service{api: api, cache: cache, logger: logger, tickets: make(map[string]uint64)}
}

// List returns the cached patients ordered by name.
func (s *Service) List() []Patient {
	list := s.cache.Patients()
	SortByName(list)
	return list
}

// Refresh reloads the patient list from the API. Patients already cached
// are kept as they are.
func (s *Service) Refresh(ctx context.Context) error {
	list, err := s.api.ListPatients(ctx)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}
	s.cache.ReplacePatientsIfAbsent(list)
	return nil
}

func (s *Service) issue(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tickets[id] = s.seq
	return s.seq
}

// commit stores p if ticket is still the newest for p.ID and ctx is live,
// and returns the record as stored. Check and store happen under one lock so
// a newer fetch cannot slip in between.
func (s *Service) commit(ctx context.Context, ticket uint64, p Patient) (Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.tickets[p.ID] != ticket {
		return Patient{}, false
	}
	return s.cache.UpsertPatient(p), true
}

// Detail fetches the full record of a patient and stores it, returning the
// stored record, which also holds entries appended while the fetch was in
// flight. The result is dropped with ErrStale when ctx is done by the time
// it arrives or when a later Detail call for the same id has begun.
func (s *Service) Detail(ctx context.Context, id string) (Patient, error) {
	if id == "" {
		return Patient{}, fmt.Errorf("patient id is required")
	}
	ticket := s.issue(id)
	p, err := s.api.GetPatient(ctx, id)
	if err != nil {
		return Patient{}, fmt.Errorf("get patient %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	stored, ok := s.commit(ctx, ticket, *p)
	if !ok {
		s.logger.Debug().Str("patient_id", id).Uint64("ticket", ticket).Msg("discarding stale patient fetch")
		return Patient{}, ErrStale
	}
	return stored, nil
}

// Cached returns the cached record for id, if any.
func (s *Service) Cached(id string) (Patient, bool) {
	return s.cache.Patient(id)
}

// Create validates in, sends it to the API and caches the new patient.
func (s *Service) Create(ctx context.Context, in NewPatient) (Patient, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return Patient{}, &ValidationError{Errors: errs}
	}
	p, err := s.api.CreatePatient(ctx, in)
	if err != nil {
		return Patient{}, fmt.Errorf("create patient: %w", err)
	}
	stored := s.cache.UpsertPatient(*p)
	s.logger.Info().Str("patient_id", stored.ID).Msg("patient created")
	return stored, nil
}
