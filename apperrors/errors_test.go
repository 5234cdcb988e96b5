package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("campaign", 3), http.StatusNotFound},
		{"forbidden", Forbidden("department mismatch"), http.StatusForbidden},
		{"invalid state", InvalidState("no target department"), http.StatusBadRequest},
		{"conflict", Conflict("dispatch in progress"), http.StatusConflict},
		{"wrapped twice", fmt.Errorf("dispatch: %w", NotFound("campaign", 3)), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestInvalidStateMessage(t *testing.T) {
	err := InvalidState("no active users found in departments %v", []uint{3, 4})
	if got, want := err.Error(), "invalid state: no active users found in departments [3 4]"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
