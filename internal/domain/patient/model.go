package patient

import (
	"sort"
	"strings"

	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/platform/validation"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Patient is a patient record. Entries stay empty on list results and are
// filled in when the full record is fetched.
type Patient struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Occupation  string     `json:"occupation"`
	Gender      Gender     `json:"gender"`
	SSN         string     `json:"ssn,omitempty"`
	DateOfBirth string     `json:"dateOfBirth,omitempty"`
	Entries     entry.List `json:"entries"`
}

// Clone returns a copy whose entry slice can be appended to without
// affecting p. Entries themselves are shared and treated as immutable.
func (p Patient) Clone() Patient {
	if p.Entries != nil {
		p.Entries = append(entry.List(nil), p.Entries...)
	}
	return p
}

// SortByName orders patients by name, then id.
func SortByName(list []Patient) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

// NewPatient is the input of the add-patient form.
type NewPatient struct {
	Name        string `json:"name" validate:"required"`
	SSN         string `json:"ssn" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,isodate"`
	Occupation  string `json:"occupation" validate:"required"`
	Gender      Gender `json:"gender" validate:"required,oneof=male female other"`
}

// Validate returns field name to message; empty means valid.
func (n NewPatient) Validate() map[string]string {
	return validation.Struct(n)
}

// ValidationError carries the per-field messages that blocked an add.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid patient: " + strings.Join(names, ", ")
}
