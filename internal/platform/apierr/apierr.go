// Package apierr describes failures reported by the patients API and turns
// them into the single banner message shown to the user.
package apierr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// GenericMessage is shown when a failure carries no usable message.
const GenericMessage = "Unknown error"

// Error is a non-2xx response from the patients API.
type Error struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no error message"
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// UserMessage returns the message the API sent, verbatim.
func (e *Error) UserMessage() string {
	return e.Message
}

// FromResponse builds an Error from a failed response. The API reports
// failures as {"error": "..."}; any other body leaves Message empty.
func FromResponse(method, path string, status int, body []byte) *Error {
	e := &Error{Status: status, Method: method, Path: path}
	var payload struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		e.Message = strings.TrimSpace(payload.Error)
	}
	return e
}

// Banner returns the text to show for a failed remote operation: the API's
// own message when there is one, GenericMessage otherwise.
func Banner(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return GenericMessage
}
