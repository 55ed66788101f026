package chat

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Errf(KindNotFound, "store.get_message", "message %s not found", "m1")
	if KindOf(err) != KindNotFound {
		t.Errorf("kind = %v, want not found", KindOf(err))
	}

	// Wrapping preserves the kind.
	wrapped := fmt.Errorf("loading: %w", err)
	if !IsKind(wrapped, KindNotFound) {
		t.Error("kind lost through wrapping")
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors are unknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil is unknown")
	}
}

func TestWrapErrNil(t *testing.T) {
	if WrapErr(KindStorage, "op", nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := WrapErr(KindStorage, "store.insert_message", errors.New("disk full"))
	msg := err.Error()
	for _, want := range []string{"store.insert_message", "storage", "disk full"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindNetworkUnavailable, true},
		{KindServerTimeout, true},
		{KindServerBusy, true},
		{KindConflict, false},
		{KindNotFound, false},
	}
	for _, tc := range cases {
		err := Errf(tc.kind, "op", "x")
		if got := Transient(err); got != tc.want {
			t.Errorf("Transient(%v) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
