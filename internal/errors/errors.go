// Package errors provides domain errors with machine-readable codes for the zotairo API.
//
// Services return typed errors; the API layer maps the code to an HTTP status:
//
//	if file == "" {
//	    return errors.NotFoundf("attachment %s has no filename", key)
//	}
//
//	if errors.Is(err, errors.ErrRemoteUnavailable) {
//	    // degrade to an empty listing on read paths
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeValidation        Code = "VALIDATION"
	CodeBlocked           Code = "CONTENT_BLOCKED"
	CodeUpstreamRejected  Code = "UPSTREAM_REJECTED"
	CodePayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"
	CodeRemoteUnavailable Code = "REMOTE_UNAVAILABLE"
	CodeInternal          Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation, CodeBlocked, CodeUpstreamRejected:
		return http.StatusBadRequest
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRemoteUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrBlocked           = &Error{Code: CodeBlocked, Message: "content blocked by provider"}
	ErrUpstreamRejected  = &Error{Code: CodeUpstreamRejected, Message: "request rejected by upstream"}
	ErrPayloadTooLarge   = &Error{Code: CodePayloadTooLarge, Message: "payload too large"}
	ErrRemoteUnavailable = &Error{Code: CodeRemoteUnavailable, Message: "remote service unavailable"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Blocked creates an error for a prompt refused by a provider's safety filter.
func Blocked(reason string) *Error {
	return &Error{Code: CodeBlocked, Message: "content blocked by provider", Details: map[string]string{"reason": reason}}
}

// UpstreamRejected creates an error carrying a provider's 4xx explanation.
func UpstreamRejected(msg string) *Error {
	return &Error{Code: CodeUpstreamRejected, Message: msg}
}

// PayloadTooLargef creates a payload too large error with formatted message.
func PayloadTooLargef(format string, args ...any) *Error {
	return &Error{Code: CodePayloadTooLarge, Message: fmt.Sprintf(format, args...)}
}

// RemoteUnavailable wraps a transport failure or 5xx from a remote service.
func RemoteUnavailable(service string, err error) *Error {
	return &Error{Code: CodeRemoteUnavailable, Message: service + " unavailable", cause: err}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
