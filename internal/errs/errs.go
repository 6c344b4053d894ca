// Package errs defines the typed errors raised by services and translated
// into HTTP responses at the API boundary.
package errs

import (
	"errors"   // Unwrapping
	"net/http" // Status codes
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal        Kind = iota // Unexpected failure, 500
	KindValidation                  // Bad input, 400
	KindNotFound                    // Missing resource, 404
	KindForbidden                   // Authenticated but not allowed, 403
	KindUnauthenticated             // Missing or bad credentials, 401
	KindConflict                    // Uniqueness or concurrent write, 409
	KindInvalidState                // Transition not allowed from the current state, 400
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindValidation:      "validation",
	KindNotFound:        "not_found",
	KindForbidden:       "forbidden",
	KindUnauthenticated: "unauthenticated",
	KindConflict:        "conflict",
	KindInvalidState:    "invalid_state",
}

// String returns the snake_case name used in logs
func (k Kind) String() string {
	return kindNames[k]
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a client-safe message. Fields carries
// per-field validation messages keyed by the request field name.
type Error struct {
	Kind    Kind              // Classification
	Message string            // Safe to show to clients
	Fields  map[string]string // Per-field validation messages
	Err     error             // Wrapped cause, never rendered outside development
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int { return e.Kind.Status() }

func newf(k Kind, msg string) *Error { return &Error{Kind: k, Message: msg} }

// Constructors for each client-facing kind
func Validation(msg string) *Error      { return newf(KindValidation, msg) }
func NotFound(msg string) *Error        { return newf(KindNotFound, msg) }
func Forbidden(msg string) *Error       { return newf(KindForbidden, msg) }
func Unauthenticated(msg string) *Error { return newf(KindUnauthenticated, msg) }
func Conflict(msg string) *Error        { return newf(KindConflict, msg) }
func InvalidState(msg string) *Error    { return newf(KindInvalidState, msg) }

// ValidationFields builds a validation error carrying field-level messages.
func ValidationFields(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Internal wraps an unexpected failure. The message shown to clients is generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As converts any error into an *Error, wrapping foreign errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// sentinels for errors.Is comparisons by kind
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
)
