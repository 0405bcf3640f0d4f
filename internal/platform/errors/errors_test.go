// internal/platform/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	base := New("base failure")
	wrapped := Wrap(base, "context")

	if wrapped.Error() != "context: base failure" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base via Is")
	}
	if Unwrap(wrapped) != base {
		t.Error("Unwrap should return the cause")
	}
	if Wrap(nil, "context") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrNotFound, "loading %s", "example.com")

	if !IsNotFound(wrapped) {
		t.Error("sentinel should survive Wrapf")
	}
	if wrapped.Error() != fmt.Sprintf("loading example.com: %v", ErrNotFound) {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if Wrapf(nil, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"timeout", Wrap(ErrTimeout, "dial"), IsTimeout},
		{"not found", Wrap(ErrNotFound, "load"), IsNotFound},
		{"snapshot corrupt", Wrapf(ErrSnapshotCorrupt, "target %s", "x"), IsSnapshotCorrupt},
		{"stage failed", Wrap(ErrStageFailed, "scan"), IsStageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("%s helper should match wrapped sentinel", tt.name)
			}
			if tt.check(New("unrelated")) {
				t.Errorf("%s helper should not match unrelated error", tt.name)
			}
		})
	}
}

func TestDeepWrapping(t *testing.T) {
	err := Wrap(Wrap(Wrapf(ErrStageFailed, "stage %d", 2), "pipeline"), "run")
	if !IsStageFailed(err) {
		t.Error("sentinel should survive multiple wraps")
	}
}
