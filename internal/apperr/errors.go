// Package apperr defines the classified errors raised by the guild service.
// Anything that is not an *Error is treated as an internal fault by the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine readable error classification.
type Code string

const (
	CodeInvalidID        Code = "INVALID_ID"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// FieldError describes one failed field of a payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a domain error: a message plus the status chosen by the raiser.
type Error struct {
	Status  int
	Code    Code
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a domain error with an explicit status.
func New(status int, code Code, format string, args ...any) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap is New with a cause kept for errors.Is / errors.As.
func Wrap(cause error, status int, code Code, format string, args ...any) *Error {
	e := New(status, code, format, args...)
	e.cause = cause
	return e
}

func InvalidID(id string) *Error {
	return New(http.StatusBadRequest, CodeInvalidID, "%q is not a valid guild id", id)
}

func InvalidInput(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, format, args...)
}

// Validation summarises the field errors in the message, like
// "guildName: is required (and 1 more error)".
func Validation(fields []FieldError) *Error {
	msg := "guild failed validation"
	if len(fields) > 0 {
		msg = fmt.Sprintf("%s: %s", fields[0].Field, fields[0].Message)
		switch n := len(fields) - 1; {
		case n == 1:
			msg += " (and 1 more error)"
		case n > 1:
			msg += fmt.Sprintf(" (and %d more errors)", n)
		}
	}
	e := New(http.StatusBadRequest, CodeValidationFailed, "%s", msg)
	e.Fields = fields
	return e
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, format, args...)
}

// AlreadyExists is reported as 400, not 409.
func AlreadyExists(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeAlreadyExists, format, args...)
}

func RateLimited() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
}

// As returns the domain error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusOf returns the status a caller should see for err.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
