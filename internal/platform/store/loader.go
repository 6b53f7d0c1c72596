package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/patient"
)

// Source is the remote side of the initial load.
type Source interface {
	ListPatients(ctx context.Context) ([]patient.Patient, error)
	ListDiagnoses(ctx context.Context) ([]diagnosis.Diagnosis, error)
}

// Load fetches patients and diagnoses concurrently and merges each result
// into s as soon as it arrives. Both fetches run to completion; the first
// error is returned.
func Load(ctx context.Context, s *Store, src Source) error {
	var g errgroup.Group
	g.Go(func() error {
		list, err := src.ListPatients(ctx)
		if err != nil {
			return fmt.Errorf("load patients: %w", err)
		}
		s.ReplacePatientsIfAbsent(list)
		return nil
	})
	g.Go(func() error {
		list, err := src.ListDiagnoses(ctx)
		if err != nil {
			return fmt.Errorf("load diagnoses: %w", err)
		}
		s.ReplaceDiagnosesIfAbsent(list)
		return nil
	})
	return g.Wait()
}
