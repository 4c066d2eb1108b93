// Package errors defines the typed error taxonomy for the Micropub server.
//
// Every failure that can reach a client maps to exactly one error type,
// and every error type maps to exactly one HTTP status and wire-level
// error code. Handlers match on the type, never on message text.
package errors

import (
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrInvalidRequest is returned when the request body or parameters are malformed
	ErrInvalidRequest = "invalid_request"

	// ErrInvalidToken is returned when the bearer token is missing, expired, or unverifiable
	ErrInvalidToken = "invalid_token"

	// ErrInsufficientScope is returned when the token lacks the scope an operation requires
	ErrInsufficientScope = "insufficient_scope"

	// ErrForbidden is returned when the target URL is not owned by the configured site
	ErrForbidden = "forbidden"

	// ErrNotFound is returned when the storage adapter reports the target post does not exist
	ErrNotFound = "not_found"

	// ErrFileTooLarge is returned when an uploaded file exceeds the configured size limit
	ErrFileTooLarge = "file_too_large"

	// ErrUnsupportedMediaType is returned when an uploaded file has a disallowed MIME type
	ErrUnsupportedMediaType = "unsupported_media_type"

	// ErrServerError is returned for any unexpected internal or adapter failure
	ErrServerError = "server_error"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status code for the error type.
// Unknown types collapse to 500.
func (e *Error) StatusCode() int {
	switch e.Type {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrInvalidToken:
		return http.StatusUnauthorized
	case ErrInsufficientScope, ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidRequestError creates a new invalid request error
func NewInvalidRequestError(message string, cause error) *Error {
	return NewError(ErrInvalidRequest, message, cause)
}

// NewInvalidTokenError creates a new invalid token error
func NewInvalidTokenError(message string, cause error) *Error {
	return NewError(ErrInvalidToken, message, cause)
}

// NewInsufficientScopeError creates a new insufficient scope error
func NewInsufficientScopeError(message string, cause error) *Error {
	return NewError(ErrInsufficientScope, message, cause)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewFileTooLargeError creates a new file too large error
func NewFileTooLargeError(message string, cause error) *Error {
	return NewError(ErrFileTooLarge, message, cause)
}

// NewUnsupportedMediaTypeError creates a new unsupported media type error
func NewUnsupportedMediaTypeError(message string, cause error) *Error {
	return NewError(ErrUnsupportedMediaType, message, cause)
}

// NewServerError creates a new server error
func NewServerError(message string, cause error) *Error {
	return NewError(ErrServerError, message, cause)
}

// IsInvalidRequest checks if the error is an invalid request error
func IsInvalidRequest(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidRequest
}

// IsInvalidToken checks if the error is an invalid token error
func IsInvalidToken(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidToken
}

// IsInsufficientScope checks if the error is an insufficient scope error
func IsInsufficientScope(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInsufficientScope
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrForbidden
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrNotFound
}

// IsFileTooLarge checks if the error is a file too large error
func IsFileTooLarge(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrFileTooLarge
}

// IsUnsupportedMediaType checks if the error is an unsupported media type error
func IsUnsupportedMediaType(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUnsupportedMediaType
}

// IsServerError checks if the error is a server error
func IsServerError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrServerError
}

// FromAdapter wraps an error returned by a storage or media adapter.
// Typed errors pass through untouched; anything else collapses to a
// server error so adapter internals never leak to the client.
func FromAdapter(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewServerError("storage operation failed", err)
}
