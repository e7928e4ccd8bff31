package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so message-carrying variants still compare equal
// to the predeclared taxonomy below.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WithMessage returns a copy of the base error carrying a specific message.
func WithMessage(base *Error, message string) *Error {
	if base == nil {
		return nil
	}
	clone := *base
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithStatus returns a copy of the base error carrying the upstream HTTP
// status and message observed on the wire.
func WithStatus(base *Error, status int, message string) *Error {
	clone := WithMessage(base, message)
	if clone != nil && status > 0 {
		clone.Status = status
	}
	return clone
}

// Predefined errors for common scenarios.
var (
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Refresh-flow errors raised by the token refresh client.
var (
	ErrRefreshInvalidInput = New("REFRESH_INVALID_INPUT", http.StatusBadRequest, "no refresh token configured for this account")
	ErrRefreshRejected     = New("REFRESH_UPSTREAM_REJECTED", http.StatusBadGateway, "token refresh rejected by upstream")
	ErrRefreshUnreachable  = New("REFRESH_UNREACHABLE", http.StatusServiceUnavailable, "token refresh endpoint unreachable")
)

// Probe classification errors raised by the status prober.
var (
	ErrProbeDeactivated  = New("PROBE_DEACTIVATED", http.StatusForbidden, "account deactivated by remote service")
	ErrProbeUnauthorized = New("PROBE_UNAUTHORIZED", http.StatusUnauthorized, "probe rejected with unauthorized")
	ErrProbeFailed       = New("PROBE_FAILED", http.StatusBadGateway, "probe failed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}
