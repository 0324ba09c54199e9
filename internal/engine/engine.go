package engine

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/session"
)

// Config holds configuration for the engine.
type Config struct {
	Gas Gas

	// ReadConcurrency is how many record reads may be in flight during a
	// load. 1 reads strictly in sequence.
	ReadConcurrency int

	// Logger for engine activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gas: Gas{
			Read:     3000000,
			Write:    3000000,
			Precheck: 300000,
			Delete:   300000,
		},
		ReadConcurrency: 1,
		Logger:          log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine ties a session, its projection and the command surface together.
//
// The session is read-only after bootstrap. The projection is replaced
// wholesale on every successful load and never edited in place.
type Engine struct {
	session    *session.Session
	reader     *Reader
	dispatcher *Dispatcher
	trigger    *Trigger
	sink       Sink
	logger     *log.Logger

	projection atomic.Pointer[bug.Projection]
}

// New creates an engine for an already bootstrapped session.
// Call Activate to load the first projection.
func New(s *session.Session, config *Config, sink Sink) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if sink == nil {
		sink = NopSink{}
	}

	e := &Engine{
		session: s,
		reader:  NewReader(config.Gas.Read, config.ReadConcurrency),
		sink:    sink,
		logger:  config.Logger,
	}
	e.projection.Store(&bug.Projection{Bugs: []bug.Bug{}})
	e.trigger = NewTrigger(e.load, config.Logger)
	e.dispatcher = NewDispatcher(s, e.reader, e.trigger, config.Gas, config.Logger)
	return e
}

// Start bootstraps a session against endpoint and activates an engine on it.
//
// A bootstrap failure is returned as a *session.ConnectionError. A failed
// first load is reported to the sink and also returned, together with the
// usable engine.
//
// Example:
//
//	e, err := engine.Start(ctx, sqlledger.Dialer{}, ".bugledger/ledger.db", nil, nil)
//	if engine.IsFatal(err) {
//	    return err
//	}
//	defer e.Close()
func Start(ctx context.Context, dialer ledger.Dialer, endpoint string, config *Config, sink Sink) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	s, err := session.Bootstrap(ctx, dialer, endpoint, config.Logger)
	if err != nil {
		return nil, err
	}

	e := New(s, config, sink)
	return e, e.Activate(ctx)
}

// Activate moves the engine to Ready and loads the first projection, if the
// session has an acting identity. Without one it does nothing and the
// engine stays Uninitialized.
func (e *Engine) Activate(ctx context.Context) error {
	if _, ok := e.session.Acting(); !ok {
		e.logger.Println("No identities available; staying uninitialized")
		return nil
	}
	return e.trigger.Activate(ctx)
}

// Refresh requests a reconciliation.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.trigger.Request(ctx)
}

// Projection returns the current snapshot.
func (e *Engine) Projection() bug.Projection {
	return *e.projection.Load()
}

// State returns the reconciliation state.
func (e *Engine) State() State {
	return e.trigger.State()
}

// Trigger exposes the reconciliation trigger.
func (e *Engine) Trigger() *Trigger {
	return e.trigger
}

// Session returns the engine's session.
func (e *Engine) Session() *session.Session {
	return e.session
}

// AddBug submits draft. See Dispatcher.AddBug.
func (e *Engine) AddBug(ctx context.Context, draft *bug.Draft) error {
	id := draft.ID
	err := e.dispatcher.AddBug(ctx, draft)
	e.report(Outcome{Command: CommandAdd, Index: -1, BugID: id, Err: err})
	return err
}

// UpdateStatus resolves the bug at index. See Dispatcher.UpdateStatus.
func (e *Engine) UpdateStatus(ctx context.Context, index int) error {
	err := e.dispatcher.UpdateStatus(ctx, index)
	e.report(Outcome{Command: CommandUpdateStatus, Index: index, Err: err})
	return err
}

// DeleteBug deletes the bug at index. See Dispatcher.DeleteBug.
func (e *Engine) DeleteBug(ctx context.Context, index int) error {
	err := e.dispatcher.DeleteBug(ctx, index)
	e.report(Outcome{Command: CommandDelete, Index: index, Err: err})
	return err
}

// Close closes the session.
func (e *Engine) Close() error {
	return e.session.Close()
}

func (e *Engine) report(o Outcome) {
	o.At = time.Now()
	if o.Err != nil {
		e.logger.Printf("Command %s failed: %v", o.Command, o.Err)
	}
	e.sink.CommandCompleted(o)
}

// load is the Trigger's LoadFunc.
func (e *Engine) load(ctx context.Context) error {
	start := time.Now()

	bugs, err := e.reader.LoadAll(ctx, e.session)
	if err != nil {
		e.logger.Printf("Load failed, keeping revision %d: %v", e.projection.Load().Revision, err)
		e.sink.LoadFailed(err)
		return err
	}
	if bugs == nil {
		bugs = []bug.Bug{}
	}

	prev := e.projection.Load()
	next := &bug.Projection{
		Bugs:     bugs,
		Revision: prev.Revision + 1,
		LoadedAt: time.Now(),
	}
	e.projection.Store(next)

	e.logger.Printf("Loaded %d bugs (revision %d) in %v", len(bugs), next.Revision, time.Since(start).Round(time.Millisecond))
	e.sink.ProjectionUpdated(*next)
	return nil
}
