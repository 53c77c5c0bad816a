// Package domainerrors defines coded errors produced by services.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate them
// into coded errors here; transports map codes to status codes in one place
// (pkg/platform/httputil).
package domainerrors

import (
	"errors"
)

// Code classifies a domain error for transport mapping.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeLocked             Code = "locked"
	CodeRateLimited        Code = "rate_limit_exceeded"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "service_unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Two errors match under errors.Is when both
// code and message are equal, which keeps test assertions precise.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error renders the code and message, followed by the cause when wrapped.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another coded error with the same code, so sentinel values work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and a client-safe message to an underlying error.
// The cause stays reachable through errors.Is/As but is never rendered to clients.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// As returns the first coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost coded error in the chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// Message returns the client-safe message, or a generic message for uncoded errors.
func Message(err error) string {
	if de, ok := As(err); ok && de.Message != "" {
		return de.Message
	}
	return "internal server error"
}
