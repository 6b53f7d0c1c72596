package entry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
	"github.com/KOPFJE/patientor/internal/platform/validation"
)

// DefaultType is the entry type a new form starts with.
const DefaultType = TypeHospital

var (
	// ErrPristine is returned by Submit while the form still holds its
	// initial values.
	ErrPristine = errors.New("form has not been modified")
	// ErrUnknownField is returned when a value is set for a field the
	// current entry type does not have.
	ErrUnknownField = errors.New("unknown form field")
	// ErrUnknownDiagnosis is returned when a selected code is not in the
	// form's diagnosis set.
	ErrUnknownDiagnosis = errors.New("unknown diagnosis code")
)

// ValidationError carries the per-field messages that blocked a submit.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid entry: " + strings.Join(names, ", ")
}

// Form is the entry creation form. Its one piece of state besides the
// field values is the selected entry type; switching type drops the values
// of fields the new type does not have. A Form is not safe for concurrent
// use.
type Form struct {
	reg       *Registry
	diagnoses diagnosis.Set

	typ     Type
	values  Values
	codes   []string
	touched map[string]bool
}

// NewForm returns a form of DefaultType with every common field empty.
// The diagnoses are the choices offered by the diagnosis selection.
func NewForm(reg *Registry, diagnoses diagnosis.Set) *Form {
	if reg == nil {
		reg = defaultRegistry
	}
	if diagnoses == nil {
		diagnoses = diagnosis.Set{}
	}
	f := &Form{reg: reg, diagnoses: diagnoses}
	f.reset()
	return f
}

func (f *Form) reset() {
	f.typ = DefaultType
	f.values = Values{}
	for _, fd := range CommonFields {
		f.values[fd.Name] = ""
	}
	f.applyDefaults()
	f.codes = nil
	f.touched = map[string]bool{}
}

func (f *Form) kind() *Kind {
	k, _ := f.reg.Lookup(f.typ)
	return k
}

func (f *Form) applyDefaults() {
	k := f.kind()
	if k == nil {
		return
	}
	for name, v := range k.Defaults {
		if _, set := f.values[name]; !set {
			f.values[name] = v
		}
	}
}

// Type returns the selected entry type.
func (f *Form) Type() Type { return f.typ }

// Fields returns the fields currently shown: common first, then the
// selected type's.
func (f *Form) Fields() []Field {
	fields, _ := f.reg.Fields(f.typ)
	return fields
}

func (f *Form) hasField(name string) bool {
	for _, fd := range CommonFields {
		if fd.Name == name {
			return true
		}
	}
	_, ok := f.kind().Field(name)
	return ok
}

// SelectType switches the form to t. Values of fields that t does not
// share are discarded, and t's defaults fill any field left unset.
func (f *Form) SelectType(t Type) error {
	k, ok := f.reg.Lookup(t)
	if !ok {
		return &UnknownTypeError{Type: t}
	}
	if t == f.typ {
		return nil
	}
	f.typ = k.Type
	for name := range f.values {
		if !f.hasField(name) {
			delete(f.values, name)
			delete(f.touched, name)
		}
	}
	f.applyDefaults()
	return nil
}

// Set stores a raw value for a field of the current type and marks it
// touched.
func (f *Form) Set(name, value string) error {
	if !f.hasField(name) {
		return fmt.Errorf("%w: %q for %s entries", ErrUnknownField, name, f.typ)
	}
	f.values[name] = value
	f.touched[name] = true
	return nil
}

// Touch marks a field as visited without changing it.
func (f *Form) Touch(name string) error {
	if !f.hasField(name) && name != "diagnosisCodes" {
		return fmt.Errorf("%w: %q for %s entries", ErrUnknownField, name, f.typ)
	}
	f.touched[name] = true
	return nil
}

// SetDiagnoses replaces the selected diagnosis codes. Every code must be
// one of the form's diagnosis choices; duplicates are collapsed keeping the
// first occurrence.
func (f *Form) SetDiagnoses(codes []string) error {
	var out []string
	seen := map[string]bool{}
	for _, c := range codes {
		if !f.diagnoses.Has(c) {
			return fmt.Errorf("%w: %s", ErrUnknownDiagnosis, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	f.codes = out
	f.touched["diagnosisCodes"] = true
	return nil
}

// Values returns a copy of the current raw values.
func (f *Form) Values() Values {
	out := make(Values, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// DiagnosisCodes returns the selected codes in selection order.
func (f *Form) DiagnosisCodes() []string {
	return append([]string(nil), f.codes...)
}

// Validate checks every shown field and returns field name to message. An
// empty map means the form is valid.
func (f *Form) Validate() map[string]string {
	errs := map[string]string{}
	for _, fd := range f.Fields() {
		if msg := validation.Value(f.values[fd.Name], fd.Rules); msg != "" {
			errs[fd.Name] = msg
		}
	}
	return errs
}

// Dirty reports whether the form differs from its initial state. A field
// holding "" counts as unset.
func (f *Form) Dirty() bool {
	initial := NewForm(f.reg, f.diagnoses)
	if f.typ != initial.typ || len(f.codes) != 0 {
		return true
	}
	for name, v := range f.values {
		if v != initial.values[name] {
			return true
		}
	}
	for name, v := range initial.values {
		if v != f.values[name] {
			return true
		}
	}
	return false
}

// Submit validates the form and builds the entry payload (an entry without
// id). It fails with ErrPristine on an untouched form and with a
// *ValidationError while any field is invalid. Submit has no side effects
// besides marking every field touched.
func (f *Form) Submit() (Entry, error) {
	for _, fd := range f.Fields() {
		f.touched[fd.Name] = true
	}
	if !f.Dirty() {
		return nil, ErrPristine
	}
	if errs := f.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	base := Base{
		Description:    f.values[FieldDescription],
		Date:           f.values[FieldDate],
		Specialist:     f.values[FieldSpecialist],
		DiagnosisCodes: f.DiagnosisCodes(),
	}
	if len(base.DiagnosisCodes) == 0 {
		base.DiagnosisCodes = nil
	}
	return f.kind().build(base, f.values)
}

// Cancel drops every value and the touched state, returning the form to
// how NewForm left it.
func (f *Form) Cancel() {
	f.reset()
}

// State is a snapshot of a form for display.
type State struct {
	Type           Type                  `json:"type"`
	Fields         []Field               `json:"fields"`
	Values         Values                `json:"values"`
	DiagnosisCodes []string              `json:"diagnosisCodes"`
	Choices        []diagnosis.Diagnosis `json:"diagnosisChoices"`
	Touched        []string              `json:"touched"`
	Errors         map[string]string     `json:"errors"`
	Dirty          bool                  `json:"dirty"`
	Valid          bool                  `json:"valid"`
	CanSubmit      bool                  `json:"canSubmit"`
}

func (f *Form) State() State {
	errs := f.Validate()
	touched := make([]string, 0, len(f.touched))
	for name := range f.touched {
		touched = append(touched, name)
	}
	sort.Strings(touched)
	dirty := f.Dirty()
	codes := f.DiagnosisCodes()
	if codes == nil {
		codes = []string{}
	}
	return State{
		Type:           f.typ,
		Fields:         f.Fields(),
		Values:         f.Values(),
		DiagnosisCodes: codes,
		Choices:        f.diagnoses.Sorted(),
		Touched:        touched,
		Errors:         errs,
		Dirty:          dirty,
		Valid:          len(errs) == 0,
		CanSubmit:      dirty && len(errs) == 0,
	}
}
