package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrPatientNotCached is returned by an Appender that does not hold the
// patient an entry was created for.
var ErrPatientNotCached = errors.New("patient not cached")

// Creator persists a new entry remotely and returns it with its assigned id.
type Creator interface {
	CreateEntry(ctx context.Context, patientID string, payload Entry) (Entry, error)
}

// Appender folds a created entry into the latest cached copy of its patient
// in one atomic step.
type Appender interface {
	AppendEntry(patientID string, e Entry) error
}

type Service struct {
	api    Creator
	cache  Appender
	logger zerolog.Logger
}

func NewService(api Creator, cache Appender, logger zerolog.Logger) *Service {
	return &Service{api: api, cache: cache, logger: logger}
}

// Create sends payload for patientID and appends the created entry to the
// cached patient. A failed request leaves the cache untouched.
func (s *Service) Create(ctx context.Context, patientID string, payload Entry) (Entry, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	if payload == nil {
		return nil, fmt.Errorf("entry payload is required")
	}
	created, err := s.api.CreateEntry(ctx, patientID, payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID).Str("type", string(payload.Kind())).Msg("create entry failed")
		return nil, fmt.Errorf("create entry: %w", err)
	}
	if err := s.cache.AppendEntry(patientID, created); err != nil {
		if !errors.Is(err, ErrPatientNotCached) {
			return nil, fmt.Errorf("cache entry: %w", err)
		}
		s.logger.Debug().Str("patient_id", patientID).Msg("created entry for patient not in cache")
	}
	s.logger.Info().
		Str("patient_id", patientID).
		Str("entry_id", created.Common().ID).
		Str("type", string(created.Kind())).
		Msg("entry created")
	return created, nil
}

// Submit runs the form's local validation and, when it passes, creates the
// entry. Validation failures never reach the API.
func (s *Service) Submit(ctx context.Context, patientID string, f *Form) (Entry, error) {
	payload, err := f.Submit()
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, patientID, payload)
}
