package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	base := errors.New("disk full")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", base, KindInternal},
		{"validation", Validation("bad time %q", "25:00"), KindValidation},
		{"wrapped conflict", fmt.Errorf("start: %w", Conflict("busy", nil)), KindConflict},
		{"not found with cause", NotFound("no url", base), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("sql: connection refused")
	err := Internal("create scan", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find cause")
	}
	if Message(err) != "create scan" {
		t.Errorf("unexpected message %q", Message(err))
	}
}

func TestIsCallerError(t *testing.T) {
	t.Parallel()
	if !IsCallerError(Validation("x")) || !IsCallerError(Conflict("x", nil)) || !IsCallerError(NotFound("x", nil)) {
		t.Error("expected caller errors")
	}
	if IsCallerError(errors.New("io")) || IsCallerError(Internal("x", nil)) {
		t.Error("expected infrastructure errors not to be caller errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindUnauthorized: http.StatusUnauthorized,
		KindInternal:     http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", k, got, want)
		}
	}
}
