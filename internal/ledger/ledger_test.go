package ledger

import (
	"errors"
	"testing"
)

func TestRevert(t *testing.T) {
	err := Revert(ErrIndexOutOfRange)
	if !errors.Is(err, ErrReverted) {
		t.Error("Revert() should wrap ErrReverted")
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Error("Revert() should keep the cause")
	}

	if got := Revert(nil); got != ErrReverted {
		t.Errorf("Revert(nil) = %v, want ErrReverted", got)
	}

	if got, want := err.Error(), "ledger rejected the call: record index out of range"; got != want {
		t.Errorf("Revert() message = %q, want %q", got, want)
	}

	already := Revert(errors.New("boom"))
	if Revert(already) != already {
		t.Error("Revert() should not wrap twice")
	}
}
