package framework

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError names a request field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ErrorResponse is the body of every non-OID4VCI error the API returns.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// SafeError carries an error whose message may be returned to the caller as is, with the status to return it
// under.
type SafeError struct {
	Err        error
	StatusCode int
	Fields     []FieldError
}

func (err *SafeError) Error() string {
	return err.Err.Error()
}

// Errors is the message followed by the names of the failed fields.
func (err *SafeError) Errors() string {
	if len(err.Fields) == 0 {
		return err.Err.Error()
	}
	names := make([]string, len(err.Fields))
	for i, field := range err.Fields {
		names[i] = field.Field
	}
	return err.Err.Error() + ": " + strings.Join(names, ", ")
}

func (err *SafeError) Unwrap() error {
	return err.Err
}

func (err *SafeError) response() ErrorResponse {
	return ErrorResponse{Error: err.Err.Error(), Fields: err.Fields}
}

func NewRequestError(err error, statusCode int) error {
	return &SafeError{Err: err, StatusCode: statusCode}
}

func NewRequestErrorMsg(msg string, statusCode int) error {
	return NewRequestError(errors.New(msg), statusCode)
}

// shutdownError marks a failure after which the service must not keep serving, such as a storage integrity issue.
type shutdownError struct {
	message string
}

func (s *shutdownError) Error() string {
	return s.message
}

// NewShutdownError returns an error that makes the Errors middleware stop the service.
func NewShutdownError(message string) error {
	return &shutdownError{message: message}
}

// IsShutdown reports whether err wraps an error made by NewShutdownError.
func IsShutdown(err error) bool {
	var target *shutdownError
	return errors.As(err, &target)
}
