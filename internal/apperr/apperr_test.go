package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(ErrEditWindowExpired); got != CodeWindowExpired {
		t.Errorf("CodeOf = %v, want %v", got, CodeWindowExpired)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Errorf("CodeOf(plain) = %v, want unknown", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Errorf("CodeOf(nil) = %v, want unknown", got)
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrNotParticipant)
	if got := CodeOf(wrapped); got != CodePermissionDenied {
		t.Errorf("CodeOf(wrapped) = %v, want permission denied", got)
	}
}

func TestInternalPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("failed to save", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if CodeOf(err) != CodeInternal {
		t.Errorf("code = %v", CodeOf(err))
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrEmptyContent, http.StatusBadRequest},
		{ErrEditWindowExpired, http.StatusBadRequest},
		{New(CodeUnauthenticated, "no token"), http.StatusUnauthorized},
		{ErrNotParticipant, http.StatusForbidden},
		{ErrMessageNotFound, http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{ErrCalleeUnavailable, http.StatusServiceUnavailable},
		{Internal("boom", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
