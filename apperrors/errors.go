package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("access denied")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)

// NotFound reports a missing resource, e.g. NotFound("campaign", 7).
func NotFound(resource string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
}

func Forbidden(detail string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, detail)
}

func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
