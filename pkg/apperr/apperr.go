// Package apperr defines the typed application error returned by services.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an expected business failure carrying the HTTP status it maps to.
type Error struct {
	Message    string
	StatusCode int
	Err        error // optional cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given status.
func New(status int, message string) *Error {
	return &Error{Message: message, StatusCode: status}
}

// BadRequest returns a 400 error.
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized returns a 401 error.
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden returns a 403 error.
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound returns a 404 error.
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Conflict returns a 409 error.
func Conflict(message string) *Error { return New(http.StatusConflict, message) }

// Internal returns a 500 error wrapping cause.
func Internal(message string, cause error) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError, Err: cause}
}

// Wrap passes an *Error through unchanged and turns anything else into a 500
// with the given message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Internal(message, err)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusCode returns the status carried by err, or 500.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
