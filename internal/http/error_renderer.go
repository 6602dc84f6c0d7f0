package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/meridianbank/opsdesk/internal/errors"
)

// Nginx convention for a client that went away before the response was
// written. net/http has no constant for it.
const statusClientClosedRequest = 499

// internalErrorMessage replaces the message of internal errors on the wire so
// driver and upstream detail stays in the logs.
const internalErrorMessage = "An internal error occurred. Please try again."

// statusForError maps a service error to an HTTP status and wire error code.
// Services return typed AppErrors, so the mapping is driven by the error code
// rather than message sniffing. Unrecognized errors are reported as internal.
func statusForError(err error) (int, string) {
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidation:
		return http.StatusBadRequest, string(code)
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, string(code)
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden, string(code)
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, string(code)
	case apperrors.ErrCodeCanceled:
		return statusClientClosedRequest, string(code)
	default:
		return http.StatusInternalServerError, string(apperrors.ErrCodeInternal)
	}
}

// WriteAppError writes a service error as the standard JSON error envelope,
// with the HTTP status derived from the error's code. Validation errors keep
// their field name so clients can highlight the failing input; internal
// errors are masked with a generic message.
func WriteAppError(w http.ResponseWriter, err error) {
	status, errCode := statusForError(err)
	params := ErrorParams{
		Code:    status,
		ErrCode: errCode,
		Err:     err,
		Field:   apperrors.GetField(err),
	}
	if errCode == string(apperrors.ErrCodeInternal) {
		params.Err = errors.New(internalErrorMessage)
	}
	WriteError(w, params)
}
