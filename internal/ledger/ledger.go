// Package ledger defines the call contract the engine uses to reach the
// external bug ledger.
//
// The ledger program itself is a fixed external contract. This package only
// names the calls it exposes:
//
//	Reads:  getRecordCount() -> n
//	        getRecord(i)     -> {id, description, criticalityCode, isResolved}
//	Writes: addRecord(id, description, criticalityCode)
//	        setResolved(i, true)
//	        removeRecord(i)
//
// Records are addressed by position only. removeRecord(i) shifts every record
// after i down by one.
//
// Implementations live in sub-packages:
//
//   - ethledger: Ethereum JSON-RPC against the Bug smart contract
//   - sqlledger: embedded SQLite ledger with the same positional semantics
//   - ledgertest: in-memory fake for tests
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReverted is returned when the ledger rejected a call.
	ErrReverted = errors.New("ledger rejected the call")

	// ErrIndexOutOfRange is returned when a call names a position past the
	// end of the record sequence. It is always wrapped together with
	// ErrReverted.
	ErrIndexOutOfRange = errors.New("record index out of range")

	// ErrClosed is returned by calls on a closed connection.
	ErrClosed = errors.New("ledger connection closed")
)

// Identity is a signing identity known to the ledger endpoint.
type Identity string

// Record is a raw ledger record, before projection.
type Record struct {
	ID              string
	Description     string
	CriticalityCode int64
	IsResolved      bool
}

// CallOpts are attached to every ledger call.
type CallOpts struct {
	// From is the acting identity.
	From Identity

	// Gas is the resource ceiling for the call. It is a fixed budget taken
	// from configuration, not tuned per call.
	Gas uint64
}

// Reader is the read side of the ledger. Reads never mutate ledger state.
type Reader interface {
	// RecordCount returns the number of records currently held.
	RecordCount(ctx context.Context, opts CallOpts) (int, error)

	// Record returns the record at position index.
	Record(ctx context.Context, opts CallOpts, index int) (Record, error)
}

// Writer is the mutating side of the ledger.
//
// Every method returns once the ledger accepted the write, which is not
// necessarily finality. A rejected write returns an error wrapping
// ErrReverted.
type Writer interface {
	AddRecord(ctx context.Context, opts CallOpts, id, description string, criticality uint8) error
	SetResolved(ctx context.Context, opts CallOpts, index int, resolved bool) error
	RemoveRecord(ctx context.Context, opts CallOpts, index int) error
}

// Conn is an open connection to a ledger endpoint.
type Conn interface {
	Reader
	Writer

	// Identities lists the signing identities the endpoint offers, in the
	// endpoint's order.
	Identities(ctx context.Context) ([]Identity, error)

	Close() error
}

// Dialer opens connections to a ledger endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}

// Revert wraps cause so that errors.Is(err, ErrReverted) holds.
func Revert(cause error) error {
	if cause == nil {
		return ErrReverted
	}
	if errors.Is(cause, ErrReverted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrReverted, cause)
}
