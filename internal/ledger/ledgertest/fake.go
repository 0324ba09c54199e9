// Package ledgertest provides an in-memory ledger for tests.
//
// The fake follows the same positional contract as the real ledgers and adds
// hooks to inject failures, count calls, and hold reads open so tests can
// observe in-flight states.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mschirtzinger/bugledger/internal/ledger"
)

// Call records one call made against the fake.
type Call struct {
	Method string
	Opts   ledger.CallOpts
	Index  int
}

// Gate holds a single call open until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	relOnce sync.Once
}

func newGate() *Gate {
	return &Gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Entered is closed once the held call has started.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets the held call continue.
func (g *Gate) Release() {
	g.relOnce.Do(func() { close(g.release) })
}

func (g *Gate) wait(ctx context.Context) error {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ledger is an in-memory ledger.Conn.
type Ledger struct {
	mu         sync.Mutex
	records    []ledger.Record
	identities []ledger.Identity
	calls      []Call
	closed     bool

	countErr   error
	recordErrs map[int]error
	writeErr   error
	countGates []*Gate
}

var _ ledger.Conn = (*Ledger)(nil)

// New returns a fake ledger offering the given identities.
func New(identities ...ledger.Identity) *Ledger {
	return &Ledger{
		identities: identities,
		recordErrs: make(map[int]error),
	}
}

// Seed appends records directly, bypassing the call log.
func (l *Ledger) Seed(records ...ledger.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
}

// Records returns a copy of the current record sequence.
func (l *Ledger) Records() []ledger.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Record, len(l.records))
	copy(out, l.records)
	return out
}

// Calls returns a copy of the call log.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// CountCalls returns how many times method was called.
func (l *Ledger) CountCalls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Mutations returns the number of mutating calls that reached the fake,
// including rejected ones.
func (l *Ledger) Mutations() int {
	return l.CountCalls("AddRecord") + l.CountCalls("SetResolved") + l.CountCalls("RemoveRecord")
}

// FailCount makes every RecordCount call fail with err until cleared with nil.
func (l *Ledger) FailCount(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.countErr = err
}

// FailRecord makes reads of index fail with err until cleared with nil.
func (l *Ledger) FailRecord(index int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.recordErrs, index)
		return
	}
	l.recordErrs[index] = err
}

// FailNextWrite makes the next mutating call fail with err.
func (l *Ledger) FailNextWrite(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// HoldCount makes the next RecordCount call block until the returned gate is
// released.
func (l *Ledger) HoldCount() *Gate {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := newGate()
	l.countGates = append(l.countGates, g)
	return g
}

// Identities implements ledger.Conn.
func (l *Ledger) Identities(ctx context.Context) ([]ledger.Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ledger.ErrClosed
	}
	out := make([]ledger.Identity, len(l.identities))
	copy(out, l.identities)
	return out, nil
}

// RecordCount implements ledger.Reader.
func (l *Ledger) RecordCount(ctx context.Context, opts ledger.CallOpts) (int, error) {
	l.mu.Lock()
	l.calls = append(l.calls, Call{Method: "RecordCount", Opts: opts, Index: -1})
	var gate *Gate
	if len(l.countGates) > 0 {
		gate = l.countGates[0]
		l.countGates = l.countGates[1:]
	}
	l.mu.Unlock()

	if gate != nil {
		if err := gate.wait(ctx); err != nil {
			return 0, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ledger.ErrClosed
	}
	if l.countErr != nil {
		return 0, l.countErr
	}
	return len(l.records), nil
}

// Record implements ledger.Reader.
func (l *Ledger) Record(ctx context.Context, opts ledger.CallOpts, index int) (ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Method: "Record", Opts: opts, Index: index})

	if l.closed {
		return ledger.Record{}, ledger.ErrClosed
	}
	if err, ok := l.recordErrs[index]; ok {
		return ledger.Record{}, err
	}
	if index < 0 || index >= len(l.records) {
		return ledger.Record{}, ledger.Revert(fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, index))
	}
	return l.records[index], nil
}

// AddRecord implements ledger.Writer.
func (l *Ledger) AddRecord(ctx context.Context, opts ledger.CallOpts, id, description string, criticality uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Method: "AddRecord", Opts: opts, Index: len(l.records)})

	if err := l.takeWriteErr(); err != nil {
		return err
	}
	l.records = append(l.records, ledger.Record{
		ID:              id,
		Description:     description,
		CriticalityCode: int64(criticality),
	})
	return nil
}

// SetResolved implements ledger.Writer.
func (l *Ledger) SetResolved(ctx context.Context, opts ledger.CallOpts, index int, resolved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Method: "SetResolved", Opts: opts, Index: index})

	if err := l.takeWriteErr(); err != nil {
		return err
	}
	if index < 0 || index >= len(l.records) {
		return ledger.Revert(fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, index))
	}
	l.records[index].IsResolved = resolved
	return nil
}

// RemoveRecord implements ledger.Writer.
func (l *Ledger) RemoveRecord(ctx context.Context, opts ledger.CallOpts, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Method: "RemoveRecord", Opts: opts, Index: index})

	if err := l.takeWriteErr(); err != nil {
		return err
	}
	if index < 0 || index >= len(l.records) {
		return ledger.Revert(fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, index))
	}
	l.records = append(l.records[:index], l.records[index+1:]...)
	return nil
}

// Close implements ledger.Conn.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Dialer returns a dialer that hands out this ledger for any endpoint.
func (l *Ledger) Dialer() ledger.Dialer {
	return ledger.DialerFunc(func(ctx context.Context, endpoint string) (ledger.Conn, error) {
		return l, nil
	})
}

// FailingDialer returns a dialer that always fails with err.
func FailingDialer(err error) ledger.Dialer {
	return ledger.DialerFunc(func(ctx context.Context, endpoint string) (ledger.Conn, error) {
		return nil, err
	})
}

// takeWriteErr must be called with l.mu held.
func (l *Ledger) takeWriteErr() error {
	if l.closed {
		return ledger.ErrClosed
	}
	err := l.writeErr
	l.writeErr = nil
	return err
}
