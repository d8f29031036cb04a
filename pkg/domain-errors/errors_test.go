package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "already decided")
	if !HasCode(err, CodeConflict) {
		t.Fatal("expected conflict code")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("did not expect not_found code")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if !HasCode(wrapped, CodeConflict) {
		t.Fatal("expected code to survive wrapping")
	}

	if HasCode(errors.New("plain"), CodeConflict) {
		t.Fatal("plain errors carry no code")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Wrap(cause, CodeInternal, "failed to advance stage")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
	if CodeOf(err) != CodeInternal {
		t.Fatalf("expected internal code, got %s", CodeOf(err))
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:         http.StatusBadRequest,
		CodeBadRequest:         http.StatusBadRequest,
		CodeInvariantViolation: http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := ToHTTPStatus(code); got != want {
			t.Errorf("ToHTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}
