package engine

import (
	"context"
	"io"
	"log"
	"sync"
)

// State is the reconciliation state.
type State int

const (
	// StateUninitialized means no usable session yet.
	StateUninitialized State = iota

	// StateReady means the projection is idle.
	StateReady

	// StateLoading means a load is in flight.
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// LoadFunc performs one full reconciliation.
type LoadFunc func(ctx context.Context) error

// Trigger decides when loads run and keeps them from overlapping.
type Trigger struct {
	load   LoadFunc
	logger *log.Logger

	mu        sync.Mutex
	state     State
	pending   bool
	loads     uint64
	coalesced uint64
}

// NewTrigger creates a Trigger in StateUninitialized.
func NewTrigger(load LoadFunc, logger *log.Logger) *Trigger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Trigger{load: load, logger: logger}
}

// Activate moves the trigger to Ready and runs the first load.
// Calling it again after activation is a no-op.
func (t *Trigger) Activate(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateUninitialized {
		t.mu.Unlock()
		return nil
	}
	t.state = StateReady
	t.mu.Unlock()

	t.logger.Println("Session ready, loading projection")
	return t.Request(ctx)
}

// Request asks for a reconciliation.
//
// If no load is running, Request runs one in the calling goroutine and keeps
// running follow-up loads while requests arrived in the meantime; it returns
// the error of the last load. If a load is already running, Request records
// that one follow-up is needed and returns nil immediately.
//
// Follow-up loads run detached from ctx's cancellation: they serve callers
// that were coalesced, so a cancelled owner must not drop them.
func (t *Trigger) Request(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateUninitialized:
		t.mu.Unlock()
		return ErrNotReady
	case StateLoading:
		t.coalesced++
		t.pending = true
		t.mu.Unlock()
		return nil
	}
	t.state = StateLoading
	t.mu.Unlock()

	loadCtx := ctx
	for {
		err := t.load(loadCtx)

		t.mu.Lock()
		t.loads++
		if !t.pending {
			t.pending = false
			t.state = StateReady
			t.mu.Unlock()
			return err
		}
		t.pending = false
		t.mu.Unlock()

		loadCtx = context.WithoutCancel(ctx)
		t.logger.Println("Running follow-up load")
	}
}

// State returns the current state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Loads returns how many loads have completed, successful or not.
func (t *Trigger) Loads() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loads
}

// Coalesced returns how many requests arrived while a load was running and
// were folded into a follow-up load.
func (t *Trigger) Coalesced() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coalesced
}
