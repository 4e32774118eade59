package apperr

import (
	"errors"
	"net/http"
)

// Code is a stable machine-readable error code returned to clients.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error carries a code, a human-readable message and the HTTP status that the
// transport layer should use. Internal details (driver errors, SQL) are never
// placed in Message; wrap them with %w around an Internal error instead.
type Error struct {
	Code    Code
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func Validation(message string) *Error {
	return newError(CodeValidation, http.StatusBadRequest, message)
}

func NotFound(message string) *Error {
	return newError(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return newError(CodeConflict, http.StatusConflict, message)
}

func Unauthorized(message string) *Error {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

// Internal wraps a fault whose detail must not leak to clients. The message is
// what the client sees; cause is available through errors.Unwrap for logging.
func Internal(message string, cause error) *Error {
	e := newError(CodeInternal, http.StatusInternalServerError, message)
	e.cause = cause
	return e
}

// From extracts an *Error from err, mapping unknown errors to a generic
// internal error so storage-layer detail never reaches the response envelope.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("something went wrong", err)
}

func IsCode(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }
