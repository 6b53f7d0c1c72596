package entry

import (
	"fmt"
	"strconv"
	"strings"
)

// Field describes one form input. Rules is a validator tag string; an empty
// Rules means the field is never checked.
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Rules       string `json:"rules,omitempty"`
}

// Required reports whether the field must be filled in.
func (f Field) Required() bool {
	for _, r := range strings.Split(f.Rules, ",") {
		if r == "required" {
			return true
		}
	}
	return false
}

// Values are raw form inputs keyed by Field.Name.
type Values map[string]string

// Common field names.
const (
	FieldDescription       = "description"
	FieldDate              = "date"
	FieldSpecialist        = "specialist"
	FieldDischargeDate     = "discharge.date"
	FieldDischargeCriteria = "discharge.criteria"
	FieldEmployerName      = "employerName"
	FieldSickLeaveStart    = "sickLeave.startDate"
	FieldSickLeaveEnd      = "sickLeave.endDate"
	FieldHealthCheckRating = "healthCheckRating"
)

// CommonFields are shown for every entry type, ahead of the type's own.
var CommonFields = []Field{
	{Name: FieldDescription, Label: "Description", Placeholder: "Description", Rules: "required"},
	{Name: FieldDate, Label: "Date of Entry", Placeholder: "YYYY-MM-DD", Rules: "required,isodate"},
	{Name: FieldSpecialist, Label: "Diagnosed by", Placeholder: "Doctor", Rules: "required"},
}

// Kind is the registry record for one entry type: its extra form fields,
// how to build a payload from form values and how to summarise a stored
// entry of that type.
type Kind struct {
	Type     Type    `json:"type"`
	Label    string  `json:"label"`
	Fields   []Field `json:"fields"`
	Defaults Values  `json:"defaults,omitempty"`

	zero      func() Entry
	build     func(base Base, v Values) (Entry, error)
	summarize func(e Entry, s *Summary) error
}

// Field returns the kind's field with the given name.
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the single description of the known entry types shared by
// the form engine, the renderer and the decoder.
type Registry struct {
	order []Type
	kinds map[Type]*Kind
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry holding the built-in entry types.
func DefaultRegistry() *Registry { return defaultRegistry }

// NewRegistry returns a registry holding the built-in entry types.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[Type]*Kind)}
	r.register(hospitalKind())
	r.register(occupationalKind())
	r.register(healthCheckKind())
	return r
}

func (r *Registry) register(k *Kind) {
	if _, dup := r.kinds[k.Type]; dup {
		panic(fmt.Sprintf("entry: type %s registered twice", k.Type))
	}
	r.order = append(r.order, k.Type)
	r.kinds[k.Type] = k
}

// Lookup returns the kind registered for t.
func (r *Registry) Lookup(t Type) (*Kind, bool) {
	k, ok := r.kinds[t]
	return k, ok
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []*Kind {
	out := make([]*Kind, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.kinds[t])
	}
	return out
}

// Fields returns the common fields followed by the fields of t.
func (r *Registry) Fields(t Type) ([]Field, error) {
	k, ok := r.kinds[t]
	if !ok {
		return nil, &UnknownTypeError{Type: t}
	}
	out := make([]Field, 0, len(CommonFields)+len(k.Fields))
	out = append(out, CommonFields...)
	return append(out, k.Fields...), nil
}

// -- Hospital --

func hospitalKind() *Kind {
	return &Kind{
		Type:  TypeHospital,
		Label: "Hospital Visit",
		Fields: []Field{
			{Name: FieldDischargeDate, Label: "Discharge date", Placeholder: "YYYY-MM-DD", Rules: "required,isodate"},
			{Name: FieldDischargeCriteria, Label: "Discharge criteria", Placeholder: "Criteria", Rules: "required"},
		},
		zero: func() Entry { return &HospitalEntry{} },
		build: func(base Base, v Values) (Entry, error) {
			return &HospitalEntry{
				Base: base,
				Discharge: Discharge{
					Date:     v[FieldDischargeDate],
					Criteria: v[FieldDischargeCriteria],
				},
			}, nil
		},
		summarize: func(e Entry, s *Summary) error {
			h, ok := e.(*HospitalEntry)
			if !ok {
				return mismatch(TypeHospital, e)
			}
			s.Details = append(s.Details,
				Detail{Label: "Discharge date", Value: h.Discharge.Date},
				Detail{Label: "Discharge criteria", Value: h.Discharge.Criteria},
			)
			return nil
		},
	}
}

// -- Occupational healthcare --

func occupationalKind() *Kind {
	return &Kind{
		Type:  TypeOccupationalHealthcare,
		Label: "Occupational Healthcare",
		Fields: []Field{
			{Name: FieldEmployerName, Label: "Employer", Placeholder: "Employer name", Rules: "required"},
			{Name: FieldSickLeaveStart, Label: "Sick leave start", Placeholder: "YYYY-MM-DD", Rules: "omitempty,isodate"},
			{Name: FieldSickLeaveEnd, Label: "Sick leave end", Placeholder: "YYYY-MM-DD", Rules: "omitempty,isodate"},
		},
		zero: func() Entry { return &OccupationalHealthcareEntry{} },
		build: func(base Base, v Values) (Entry, error) {
			e := &OccupationalHealthcareEntry{Base: base, EmployerName: v[FieldEmployerName]}
			// Start and end are independent; either one alone still records a leave.
			if v[FieldSickLeaveStart] != "" || v[FieldSickLeaveEnd] != "" {
				e.SickLeave = &SickLeave{StartDate: v[FieldSickLeaveStart], EndDate: v[FieldSickLeaveEnd]}
			}
			return e, nil
		},
		summarize: func(e Entry, s *Summary) error {
			o, ok := e.(*OccupationalHealthcareEntry)
			if !ok {
				return mismatch(TypeOccupationalHealthcare, e)
			}
			s.Details = append(s.Details, Detail{Label: "Employer", Value: o.EmployerName})
			if o.SickLeave != nil {
				s.Details = append(s.Details, Detail{
					Label: "Sick leave",
					Value: o.SickLeave.StartDate + " - " + o.SickLeave.EndDate,
				})
			}
			return nil
		},
	}
}

// -- Health check --

func healthCheckKind() *Kind {
	return &Kind{
		Type:  TypeHealthCheck,
		Label: "Health Check-up",
		Fields: []Field{
			{Name: FieldHealthCheckRating, Label: "Health check rating", Placeholder: "0-3", Rules: "required,oneof=0 1 2 3"},
		},
		Defaults: Values{FieldHealthCheckRating: "0"},
		zero:     func() Entry { return &HealthCheckEntry{} },
		build: func(base Base, v Values) (Entry, error) {
			n, err := strconv.Atoi(v[FieldHealthCheckRating])
			if err != nil {
				return nil, fmt.Errorf("health check rating: %w", err)
			}
			r := HealthCheckRating(n)
			if !r.Valid() {
				return nil, fmt.Errorf("health check rating %d out of range", n)
			}
			return &HealthCheckEntry{Base: base, HealthCheckRating: r}, nil
		},
		summarize: func(e Entry, s *Summary) error {
			h, ok := e.(*HealthCheckEntry)
			if !ok {
				return mismatch(TypeHealthCheck, e)
			}
			s.Band = BandFor(h.HealthCheckRating)
			s.Details = append(s.Details, Detail{
				Label: "Health rating",
				Value: fmt.Sprintf("%d (%s)", int(h.HealthCheckRating), h.HealthCheckRating),
			})
			return nil
		},
	}
}

func mismatch(want Type, e Entry) error {
	return fmt.Errorf("entry %s: registered as %s but stored as %T", e.Common().ID, want, e)
}
