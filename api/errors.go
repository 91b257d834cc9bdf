package api

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNoConnectivity       = errors.New("no network connectivity")
	ErrBadConnection        = errors.New("bad connection")
	ErrBadResponse          = errors.New("bad response")
	ErrMissingParameters    = errors.New("missing parameters")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrServerError          = errors.New("server error")
)

var descriptions = map[error]string{
	ErrNoConnectivity:       "No internet connection available.",
	ErrBadConnection:        "Could not establish connection.",
	ErrBadResponse:          "There was a problem with response from the server.",
	ErrMissingParameters:    "Missing parameters required for this operation.",
	ErrAuthenticationFailed: "Authentication failed.",
	ErrServerError:          "The server could not complete the request.",
}

// Error describes a failed exchange with the backend.
type Error struct {
	// Kind is one of the Err* sentinels of this package.
	Kind   error
	URL    string
	Method string
	Status int
	// Body is the raw response body of a failed response.
	Body string
	// Message is the server supplied message field of a JSON error body.
	Message string
	Cause   error
	TraceID string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Status > 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Is matches the kind of the error or anything its cause matches.
func (e *Error) Is(target error) bool {
	return target == e.Kind || (e.Cause != nil && errors.Is(e.Cause, target))
}

func NewError(kind error, method, url string, status int, body string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Method:  method,
		URL:     url,
		Status:  status,
		Body:    body,
		Message: ParseMessage([]byte(body)),
		Cause:   cause,
	}
}

// ParseMessage extracts the message field from a JSON error body, or returns "".
func ParseMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Message
}

// Describe returns a human readable description of err suitable for users.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Cause != nil {
			if d := Describe(apiErr.Cause); d != apiErr.Cause.Error() {
				return d
			}
		}
		if d, ok := descriptions[apiErr.Kind]; ok {
			return d
		}
	}
	for kind, d := range descriptions {
		if errors.Is(err, kind) {
			return d
		}
	}
	return err.Error()
}
