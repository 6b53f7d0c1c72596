package entry

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Type is the discriminant selecting which entry variant applies.
type Type string

const (
	TypeHospital               Type = "Hospital"
	TypeOccupationalHealthcare Type = "OccupationalHealthcare"
	TypeHealthCheck            Type = "HealthCheck"
)

// Types lists every entry variant in display order.
func Types() []Type {
	return []Type{TypeHospital, TypeOccupationalHealthcare, TypeHealthCheck}
}

// Entry is one clinical record attached to a patient. The set of
// implementations is closed: only types in this package can satisfy it.
type Entry interface {
	Kind() Type
	Common() *Base
	isEntry()
}

// Base holds the fields shared by every entry variant.
type Base struct {
	ID             string   `json:"id,omitempty"`
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	Specialist     string   `json:"specialist"`
	DiagnosisCodes []string `json:"diagnosisCodes,omitempty"`
}

func (b *Base) Common() *Base { return b }

func (b *Base) isEntry() {}

// wire is the flat document every variant encodes to. Variant fields are
// pointers so that only the ones a variant sets are written.
type wire struct {
	Type              Type               `json:"type"`
	ID                string             `json:"id,omitempty"`
	Description       string             `json:"description"`
	Date              string             `json:"date"`
	Specialist        string             `json:"specialist"`
	DiagnosisCodes    []string           `json:"diagnosisCodes,omitempty"`
	Discharge         *Discharge         `json:"discharge,omitempty"`
	EmployerName      *string            `json:"employerName,omitempty"`
	SickLeave         *SickLeave         `json:"sickLeave,omitempty"`
	HealthCheckRating *HealthCheckRating `json:"healthCheckRating,omitempty"`
}

func newWire(t Type, b Base) wire {
	return wire{
		Type:           t,
		ID:             b.ID,
		Description:    b.Description,
		Date:           b.Date,
		Specialist:     b.Specialist,
		DiagnosisCodes: b.DiagnosisCodes,
	}
}

// Discharge closes a hospital stay.
type Discharge struct {
	Date     string `json:"date"`
	Criteria string `json:"criteria"`
}

// SickLeave is an optional leave period on occupational entries.
type SickLeave struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// HealthCheckRating grades a health check from 0 (healthy) to 3.
type HealthCheckRating int

const (
	RatingHealthy HealthCheckRating = iota
	RatingLowRisk
	RatingHighRisk
	RatingCriticalRisk
)

func (r HealthCheckRating) String() string {
	switch r {
	case RatingHealthy:
		return "Healthy"
	case RatingLowRisk:
		return "LowRisk"
	case RatingHighRisk:
		return "HighRisk"
	case RatingCriticalRisk:
		return "CriticalRisk"
	default:
		return fmt.Sprintf("HealthCheckRating(%d)", int(r))
	}
}

// Valid reports whether r is one of the four defined levels.
func (r HealthCheckRating) Valid() bool {
	return r >= RatingHealthy && r <= RatingCriticalRisk
}

type HospitalEntry struct {
	Base
	Discharge Discharge `json:"discharge"`
}

func (*HospitalEntry) Kind() Type { return TypeHospital }

func (e *HospitalEntry) MarshalJSON() ([]byte, error) {
	w := newWire(TypeHospital, e.Base)
	w.Discharge = &e.Discharge
	return json.Marshal(w)
}

type OccupationalHealthcareEntry struct {
	Base
	EmployerName string     `json:"employerName"`
	SickLeave    *SickLeave `json:"sickLeave,omitempty"`
}

func (*OccupationalHealthcareEntry) Kind() Type { return TypeOccupationalHealthcare }

func (e *OccupationalHealthcareEntry) MarshalJSON() ([]byte, error) {
	w := newWire(TypeOccupationalHealthcare, e.Base)
	w.EmployerName = &e.EmployerName
	w.SickLeave = e.SickLeave
	return json.Marshal(w)
}

type HealthCheckEntry struct {
	Base
	HealthCheckRating HealthCheckRating `json:"healthCheckRating"`
}

func (*HealthCheckEntry) Kind() Type { return TypeHealthCheck }

func (e *HealthCheckEntry) MarshalJSON() ([]byte, error) {
	w := newWire(TypeHealthCheck, e.Base)
	w.HealthCheckRating = &e.HealthCheckRating
	return json.Marshal(w)
}

// UnknownEntry holds an entry whose type tag is not registered. It keeps
// the raw document so it can be re-encoded unchanged; rendering it fails
// with ErrUnknownEntryType.
type UnknownEntry struct {
	Base
	Tag Type
	Raw json.RawMessage
}

func (e *UnknownEntry) Kind() Type { return e.Tag }

func (e *UnknownEntry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(newWire(e.Tag, e.Base))
}

// Decode reads one entry document, selecting the variant by its "type"
// field through the default registry. Unregistered types decode into an
// *UnknownEntry instead of failing.
func Decode(data []byte) (Entry, error) {
	return defaultRegistry.Decode(data)
}

// Decode is Decode against this registry's kinds.
func (r *Registry) Decode(data []byte) (Entry, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if k, ok := r.kinds[head.Type]; ok {
		e := k.zero()
		if err := json.Unmarshal(data, e); err != nil {
			return nil, fmt.Errorf("decode %s entry: %w", head.Type, err)
		}
		return e, nil
	}
	u := &UnknownEntry{Tag: head.Type, Raw: append(json.RawMessage(nil), data...)}
	if err := json.Unmarshal(data, &u.Base); err != nil {
		return nil, fmt.Errorf("decode %q entry: %w", head.Type, err)
	}
	return u, nil
}

// List is an ordered entry sequence that decodes polymorphically.
type List []Entry

func (l *List) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode entries: %w", err)
	}
	out := make(List, 0, len(raws))
	for i, raw := range raws {
		e, err := Decode(raw)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	*l = out
	return nil
}
