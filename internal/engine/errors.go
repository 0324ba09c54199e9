package engine

import (
	"errors"
	"fmt"

	"github.com/Mschirtzinger/bugledger/internal/session"
)

var (
	// ErrPreconditionNotMet is returned when DeleteBug targets a bug that is
	// not resolved. No ledger write is attempted.
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrNoIdentity is returned by commands when the session has no acting
	// identity.
	ErrNoIdentity = errors.New("no acting identity")

	// ErrNotReady is returned by Trigger.Request before activation.
	ErrNotReady = errors.New("engine not ready")
)

// LoadError is returned when a read fails during reconciliation.
// Nothing from the failed load is published.
type LoadError struct {
	// Index is the record that failed, or -1 if the count read failed.
	Index int
	Err   error
}

func (e *LoadError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to read record count: %v", e.Err)
	}
	return fmt.Sprintf("failed to read record %d: %v", e.Index, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CommandError is returned when a mutating command failed or was rejected
// by the ledger.
type CommandError struct {
	Command string
	Index   int
	Err     error
}

func (e *CommandError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s of bug %d failed: %v", e.Command, e.Index, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the engine cannot be used at all.
// Only bootstrap failures are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return session.IsConnectionError(err)
}

// IsRetryable returns true if issuing the same operation again may succeed.
// Retrying is always a fresh user-initiated command; the engine never
// retries by itself.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var le *LoadError
	if errors.As(err, &le) {
		return true
	}

	var ce *CommandError
	return errors.As(err, &ce)
}
