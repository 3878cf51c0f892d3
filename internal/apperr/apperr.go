// Package apperr defines the typed failure taxonomy shared by every
// engine. Engines return *Error values; the HTTP boundary maps each
// code to a status via Code.HTTPStatus.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error identifier.
type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeNotFound          Code = "not_found"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeConflict          Code = "conflict"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeContention        Code = "contention"
	CodeBlocked           Code = "blocked"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// HTTPStatus returns the HTTP status for this code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeBlocked:
		return http.StatusForbidden
	case CodeConflict, CodeInsufficientFunds:
		return http.StatusConflict
	case CodeContention:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether a client should retry the request.
// Only transient contention and timeouts qualify; validation and state
// conflicts are permanent.
func (c Code) IsRetryable() bool {
	switch c {
	case CodeContention, CodeTimeout:
		return true
	default:
		return false
	}
}

// Error is a typed failure carrying a code, message and optional context.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a typed error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a context key/value and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the Code from an error chain, defaulting to internal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// response is the JSON error envelope returned to clients.
type response struct {
	Error detail `json:"error"`
}

type detail struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteJSON writes err to w as the standard error envelope. Unknown
// error types are masked as internal to avoid leaking internals.
func WriteJSON(w http.ResponseWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = New(CodeInternal, "internal error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(response{Error: detail{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Code.IsRetryable(),
		Details:   appErr.Details,
	}})
}

// Write is a convenience that builds and writes a typed error in one call.
func Write(w http.ResponseWriter, code Code, message string) {
	WriteJSON(w, New(code, message))
}
