package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		name string
	}{
		{ErrChallengeNotFound, ErrNotFound, "not_found"},
		{ErrChallengeFull, ErrConflict, "conflict"},
		{ErrAlreadyJoined, ErrConflict, "conflict"},
		{ErrNotHost, ErrForbidden, "forbidden"},
		{ErrInvalidCode, ErrValidation, "validation"},
		{ErrCodeGenerationExhausted, ErrExhausted, "exhausted"},
		{Unavailable("insert answer", errors.New("conn reset")), ErrUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Fatalf("%v: expected kind %v", tc.err, tc.kind)
		}
		wrapped := fmt.Errorf("join: %w", tc.err)
		if got := Kind(wrapped); got != tc.name {
			t.Fatalf("%v: expected kind name %s, got %s", tc.err, tc.name, got)
		}
	}
	if Kind(errors.New("boom")) != "internal" {
		t.Fatalf("expected unknown errors to be internal")
	}
}
