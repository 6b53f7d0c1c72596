// Package store is the in-memory cache of patients and diagnoses shared by
// the services and handlers.
package store

import (
	"fmt"
	"sync"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
)

// ErrPatientNotFound is returned by AppendEntry for an id that is not cached.
var ErrPatientNotFound = entry.ErrPatientNotCached

// Snapshot is a point-in-time copy of the store. Callers may modify the maps
// freely.
type Snapshot struct {
	Patients  map[string]patient.Patient
	Diagnoses diagnosis.Set
	Patient   *patient.Patient
}

// Store holds patients by id, diagnoses by code, and the last patient stored
// through UpsertPatient. Keys are never removed.
type Store struct {
	mu        sync.RWMutex
	patients  map[string]patient.Patient
	diagnoses diagnosis.Set
	focused   string
}

func New() *Store {
	return &Store{
		patients:  make(map[string]patient.Patient),
		diagnoses: make(diagnosis.Set),
	}
}

// ReplacePatientsIfAbsent adds the patients whose id is not cached yet.
// Cached records, which may carry entries from a detail fetch, win.
func (s *Store) ReplacePatientsIfAbsent(list []patient.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range list {
		if _, ok := s.patients[p.ID]; !ok {
			s.patients[p.ID] = p.Clone()
		}
	}
}

// ReplaceDiagnosesIfAbsent adds the diagnoses whose code is not cached yet.
func (s *Store) ReplaceDiagnosesIfAbsent(list []diagnosis.Diagnosis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range list {
		if _, ok := s.diagnoses[d.Code]; !ok {
			s.diagnoses[d.Code] = d
		}
	}
}

// UpsertPatient stores p over any cached record and makes it the focused
// patient. Cached entries whose id does not appear in p are kept after p's
// own entries, so a record fetched before an AppendEntry cannot drop the
// appended entry. The stored record is returned.
func (s *Store) UpsertPatient(p patient.Patient) patient.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Clone()
	if old, ok := s.patients[p.ID]; ok {
		p.Entries = carryEntries(p.Entries, old.Entries)
	}
	s.patients[p.ID] = p
	s.focused = p.ID
	return p.Clone()
}

func carryEntries(fresh, cached entry.List) entry.List {
	seen := make(map[string]struct{}, len(fresh))
	for _, e := range fresh {
		seen[e.Common().ID] = struct{}{}
	}
	for _, e := range cached {
		id := e.Common().ID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, e)
		}
	}
	return fresh
}

// AppendEntry appends e to the cached patient with the given id. The read
// and the write happen in one critical section, so concurrent appends to the
// same patient all persist.
func (s *Store) AppendEntry(patientID string, e entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	p = p.Clone()
	p.Entries = append(p.Entries, e)
	s.patients[patientID] = p
	return nil
}

// Read returns a snapshot of the whole store.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Patients:  make(map[string]patient.Patient, len(s.patients)),
		Diagnoses: make(diagnosis.Set, len(s.diagnoses)),
	}
	for id, p := range s.patients {
		snap.Patients[id] = p.Clone()
	}
	for code, d := range s.diagnoses {
		snap.Diagnoses[code] = d
	}
	if p, ok := s.patients[s.focused]; ok && s.focused != "" {
		fp := p.Clone()
		snap.Patient = &fp
	}
	return snap
}

// Patients returns every cached patient in no particular order.
func (s *Store) Patients() []patient.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]patient.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p.Clone())
	}
	return out
}

func (s *Store) Patient(id string) (patient.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return patient.Patient{}, false
	}
	return p.Clone(), true
}

func (s *Store) Diagnosis(code string) (diagnosis.Diagnosis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.diagnoses[code]
	return d, ok
}

// DiagnosisSet returns a copy of the cached diagnoses.
func (s *Store) DiagnosisSet() diagnosis.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(diagnosis.Set, len(s.diagnoses))
	for code, d := range s.diagnoses {
		out[code] = d
	}
	return out
}
