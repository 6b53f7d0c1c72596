// Package validation wraps go-playground/validator with the rules and
// user-facing messages shared by the patient and entry forms.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar date format used by every date field.
const DateLayout = "2006-01-02"

const (
	MsgRequired   = "Field is required"
	MsgDateFormat = "Date must be in YYYY-MM-DD format"
	MsgInvalid    = "Invalid value"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("isodate", validateISODate)
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// IsDate reports whether s is a real calendar date written as YYYY-MM-DD.
func IsDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validateISODate(fl validator.FieldLevel) bool {
	return IsDate(fl.Field().String())
}

// Value checks a single form value against a validator tag string such as
// "required,isodate". It returns the message for the first failing rule, or
// "" when the value passes. Rules are evaluated in order, so a required
// failure is never reported together with a format failure.
func Value(value, rules string) string {
	if rules == "" {
		return ""
	}
	err := validate.Var(value, rules)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return Message(verrs[0])
	}
	return MsgInvalid
}

// Struct validates s and returns a map from json field name to message.
// An empty map means s is valid.
func Struct(s interface{}) map[string]string {
	out := map[string]string{}
	err := validate.Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out[""] = err.Error()
		return out
	}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = Message(fe)
		}
	}
	return out
}

// Message renders a validator failure as user-facing text.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "isodate":
		return MsgDateFormat
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return MsgInvalid
	}
}
