package entry

import (
	"errors"
	"fmt"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
)

// ErrUnknownEntryType is matched by every failure caused by an entry type
// that has no registry record.
var ErrUnknownEntryType = errors.New("unknown entry type")

// UnknownTypeError reports an entry whose type is not registered. When it
// comes out of the renderer it means the registry and the entry union have
// drifted apart, or the API sent malformed data.
type UnknownTypeError struct {
	Type    Type
	EntryID string
}

func (e *UnknownTypeError) Error() string {
	if e.EntryID == "" {
		return fmt.Sprintf("unhandled entry type %q", string(e.Type))
	}
	return fmt.Sprintf("entry %s: unhandled entry type %q", e.EntryID, string(e.Type))
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownEntryType }

// Band is the display severity of a health check.
type Band string

const (
	BandHealthy  Band = "healthy"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

// BandFor maps a rating to its display band. There are three bands for four
// rating levels: HighRisk and CriticalRisk share the critical band.
func BandFor(r HealthCheckRating) Band {
	switch {
	case r < 1:
		return BandHealthy
	case r < 2:
		return BandWarning
	default:
		return BandCritical
	}
}

// DiagnosisLine is one diagnosis code on a summary. Name is empty when the
// code is not in the diagnosis vocabulary.
type DiagnosisLine struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Detail is one type-specific label/value pair.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the rendered form of a stored entry.
type Summary struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Label       string          `json:"label"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Specialist  string          `json:"specialist"`
	Diagnoses   []DiagnosisLine `json:"diagnoses"`
	Details     []Detail        `json:"details"`
	Band        Band            `json:"band,omitempty"`
}

// Renderer turns stored entries into summaries.
type Renderer struct {
	reg *Registry
}

func NewRenderer(reg *Registry) *Renderer {
	if reg == nil {
		reg = defaultRegistry
	}
	return &Renderer{reg: reg}
}

// Summarize renders e. Diagnosis codes resolve through lookup, which may be
// nil. An entry whose type is not registered yields an *UnknownTypeError;
// the failure concerns that entry only.
func (r *Renderer) Summarize(e Entry, lookup diagnosis.Lookup) (Summary, error) {
	if e == nil {
		return Summary{}, errors.New("summarize: nil entry")
	}
	b := e.Common()
	k, ok := r.reg.Lookup(e.Kind())
	if !ok {
		return Summary{}, &UnknownTypeError{Type: e.Kind(), EntryID: b.ID}
	}

	s := Summary{
		ID:          b.ID,
		Type:        k.Type,
		Label:       k.Label,
		Date:        b.Date,
		Description: b.Description,
		Specialist:  b.Specialist,
		Diagnoses:   make([]DiagnosisLine, 0, len(b.DiagnosisCodes)),
		Details:     []Detail{},
	}
	for _, code := range b.DiagnosisCodes {
		line := DiagnosisLine{Code: code}
		if lookup != nil {
			if d, found := lookup.Diagnosis(code); found {
				line.Name = d.Name
			}
		}
		s.Diagnoses = append(s.Diagnoses, line)
	}

	if err := k.summarize(e, &s); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Rendered is the outcome of rendering one entry of a list.
type Rendered struct {
	Summary *Summary
	Err     error
}

// SummarizeAll renders every entry in order. A failing entry gets its error
// in place; the rest are still rendered.
func (r *Renderer) SummarizeAll(list []Entry, lookup diagnosis.Lookup) []Rendered {
	out := make([]Rendered, 0, len(list))
	for _, e := range list {
		s, err := r.Summarize(e, lookup)
		if err != nil {
			out = append(out, Rendered{Err: err})
			continue
		}
		out = append(out, Rendered{Summary: &s})
	}
	return out
}
