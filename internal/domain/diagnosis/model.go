package diagnosis

import "sort"

// Diagnosis is one code/name pair from the external diagnosis vocabulary
// (ICD-10 style codes). Diagnoses are loaded in bulk and never mutated.
type Diagnosis struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Latin string `json:"latin,omitempty"`
}

// Lookup resolves a diagnosis code to its record.
type Lookup interface {
	Diagnosis(code string) (Diagnosis, bool)
}

// Set is a Lookup backed by a plain map keyed by code.
type Set map[string]Diagnosis

// NewSet indexes the given diagnoses by code. Later duplicates win.
func NewSet(list []Diagnosis) Set {
	s := make(Set, len(list))
	for _, d := range list {
		s[d.Code] = d
	}
	return s
}

func (s Set) Diagnosis(code string) (Diagnosis, bool) {
	d, ok := s[code]
	return d, ok
}

// Has reports whether code is part of the set.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Sorted returns the diagnoses ordered by code.
func (s Set) Sorted() []Diagnosis {
	out := make([]Diagnosis, 0, len(s))
	for _, d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
