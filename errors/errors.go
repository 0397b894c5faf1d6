package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrValidation    = fmt.Errorf("invalid input")
	ErrUnknownSender = fmt.Errorf("%w: sender is not a registered participant", ErrValidation)
	ErrConflict      = fmt.Errorf("name already taken")
	ErrNotFound      = fmt.Errorf("not found")
	ErrForbidden     = fmt.Errorf("not the owner of this message")
	ErrStore         = fmt.Errorf("store unavailable")
)

// HTTPStatus maps a business or store error to the status code returned by the chat API.
// Errors outside the taxonomy are reported as internal errors.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrForbidden):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// IsExpected reports whether err is a business outcome that should be answered
// without logging it as a failure.
func IsExpected(err error) bool {
	return stderrors.Is(err, ErrValidation) ||
		stderrors.Is(err, ErrConflict) ||
		stderrors.Is(err, ErrNotFound) ||
		stderrors.Is(err, ErrForbidden)
}
