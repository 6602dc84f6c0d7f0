// Package errors defines the application error type shared by services,
// repositories, and the HTTP layer. Every failure that crosses a package
// boundary is an *AppError carrying a code the transport layer can map to a
// status, an operator-safe message, and optionally the field that caused it.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error.
type ErrorCode string

const (
	// ErrCodeInvalidInput: the caller supplied a payload of the wrong shape
	// (e.g. an upstream collection that is not an array).
	ErrCodeInvalidInput ErrorCode = "invalid_input"
	// ErrCodeNotFound: the referenced resource does not exist.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict: the write collides with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation: a request field failed validation.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForbidden: the caller lacks the role the operation requires.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeInternal: an unexpected server-side failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout: a deadline expired before the operation finished.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled: the caller abandoned the operation.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a categorized error. It wraps an optional cause so errors.Is
// and errors.As see through it.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending request field on validation and conflict
	// errors; empty otherwise.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// InvalidInput builds an invalid-input error.
func InvalidInput(message string) *AppError {
	return newError(ErrCodeInvalidInput, message)
}

// InvalidInputf builds an invalid-input error with a formatted message.
func InvalidInputf(format string, args ...any) *AppError {
	return newError(ErrCodeInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error.
func NotFound(message string) *AppError {
	return newError(ErrCodeNotFound, message)
}

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Conflict builds a conflict error.
func Conflict(message string) *AppError {
	return newError(ErrCodeConflict, message)
}

// Conflictf builds a conflict error with a formatted message.
func Conflictf(format string, args ...any) *AppError {
	return newError(ErrCodeConflict, fmt.Sprintf(format, args...))
}

// Validation builds a validation error.
func Validation(message string) *AppError {
	return newError(ErrCodeValidation, message)
}

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return newError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField builds a validation error attributed to one field.
func ValidationField(field, message string) *AppError {
	err := newError(ErrCodeValidation, message)
	err.Field = field
	return err
}

// Forbidden builds a forbidden error.
func Forbidden(message string) *AppError {
	return newError(ErrCodeForbidden, message)
}

// Forbiddenf builds a forbidden error with a formatted message.
func Forbiddenf(format string, args ...any) *AppError {
	return newError(ErrCodeForbidden, fmt.Sprintf(format, args...))
}

// Internal builds an internal error.
func Internal(message string) *AppError {
	return newError(ErrCodeInternal, message)
}

// Internalf builds an internal error with a formatted message.
func Internalf(format string, args ...any) *AppError {
	return newError(ErrCodeInternal, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to an existing error. A nil err yields a
// nil result so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message. The message is never formatted for
// a nil err.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// GetCode extracts the code from an error chain; non-AppError chains yield "".
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField extracts the offending field from an error chain, if any.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func isCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsInvalidInput reports whether err carries ErrCodeInvalidInput.
func IsInvalidInput(err error) bool { return isCode(err, ErrCodeInvalidInput) }

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict reports whether err carries ErrCodeConflict.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation reports whether err carries ErrCodeValidation.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsForbidden reports whether err carries ErrCodeForbidden.
func IsForbidden(err error) bool { return isCode(err, ErrCodeForbidden) }

// IsInternal reports whether err carries ErrCodeInternal.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout reports whether err carries ErrCodeTimeout.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled reports whether err carries ErrCodeCanceled.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }
