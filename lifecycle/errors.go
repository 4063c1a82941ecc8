package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors form the full taxonomy the API layer maps to HTTP status
// codes. Handlers must only surface these; anything else renders as a generic
// internal error so storage failures never leak to clients.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("requested resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("resource conflict")
	ErrPrecondition      = errors.New("precondition failed")
	ErrInternal          = errors.New("internal error")
)

// HTTPStatus maps a lifecycle error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPrecondition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Errorf wraps a sentinel with detail: Errorf(ErrForbidden, "not the assigned collector").
func Errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{sentinel}, args...)...)
}
