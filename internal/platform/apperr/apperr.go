// Package apperr defines the error taxonomy shared by all services.
// Services wrap these sentinels with fmt.Errorf("%w: ...") so callers can
// classify failures with errors.Is while keeping the offending id in the
// message.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound marks a referenced entity that is missing or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks duplicate attaches, name collisions and writes
	// against a submitted evaluation.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks malformed payloads and answers that reference
	// schema unreachable from the evaluation's survey.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks a caller without the required role or scope.
	ErrForbidden = errors.New("forbidden")
)

// HTTPStatus maps an error to the HTTP status handlers should return.
// Unclassified errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
