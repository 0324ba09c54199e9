package engine

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/session"
)

// Reconciler is what the dispatcher calls after the ledger accepted a write.
type Reconciler interface {
	Request(ctx context.Context) error
}

// Gas holds the fixed resource ceilings for each kind of call.
type Gas struct {
	Read     uint64
	Write    uint64
	Precheck uint64
	Delete   uint64
}

// Dispatcher issues mutating commands against the ledger.
//
// Each command validates, submits, and on acceptance requests a
// reconciliation. Rejected submissions return a *CommandError and never
// reconcile.
type Dispatcher struct {
	session    *session.Session
	reader     *Reader
	reconciler Reconciler
	gas        Gas
	logger     *log.Logger
}

// NewDispatcher creates a Dispatcher bound to a session.
func NewDispatcher(s *session.Session, reader *Reader, reconciler Reconciler, gas Gas, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{
		session:    s,
		reader:     reader,
		reconciler: reconciler,
		gas:        gas,
		logger:     logger,
	}
}

// AddBug submits draft as a new record.
//
// The criticality is validated locally; an invalid label returns an error
// wrapping bug.ErrInvalidCriticality without contacting the ledger. On
// success the draft is reset. On failure it is left untouched so the user
// can retry.
func (d *Dispatcher) AddBug(ctx context.Context, draft *bug.Draft) error {
	from, err := d.acting()
	if err != nil {
		return err
	}

	code := bug.Encode(draft.Criticality)
	if code == bug.InvalidCode {
		return fmt.Errorf("%w: %q", bug.ErrInvalidCriticality, draft.Criticality)
	}

	opts := ledger.CallOpts{From: from, Gas: d.gas.Write}
	if err := d.session.Ledger().AddRecord(ctx, opts, draft.ID, draft.Description, uint8(code)); err != nil {
		return &CommandError{Command: CommandAdd, Index: -1, Err: err}
	}

	d.logger.Printf("Added bug %s (%s)", draft.ID, draft.Criticality)
	draft.Reset()
	d.reconcile(ctx)
	return nil
}

// UpdateStatus marks the record at index as resolved.
//
// The transition is one-way. The dispatcher does not check the current
// status; offering the command only for unresolved bugs is the
// presentation layer's job.
func (d *Dispatcher) UpdateStatus(ctx context.Context, index int) error {
	from, err := d.acting()
	if err != nil {
		return err
	}

	opts := ledger.CallOpts{From: from, Gas: d.gas.Write}
	if err := d.session.Ledger().SetResolved(ctx, opts, index, true); err != nil {
		return &CommandError{Command: CommandUpdateStatus, Index: index, Err: err}
	}

	d.logger.Printf("Resolved bug %d", index)
	d.reconcile(ctx)
	return nil
}

// DeleteBug removes the record at index if it is resolved.
//
// The record is read fresh from the ledger first. If it is not resolved the
// command returns ErrPreconditionNotMet and makes no write.
func (d *Dispatcher) DeleteBug(ctx context.Context, index int) error {
	from, err := d.acting()
	if err != nil {
		return err
	}

	current, err := d.reader.ReadOne(ctx, d.session, index, d.gas.Precheck)
	if err != nil {
		return &CommandError{Command: CommandDelete, Index: index, Err: err}
	}
	if !current.IsResolved {
		d.logger.Printf("Bug %d (%s) cannot be deleted because it is not resolved", index, current.ID)
		return fmt.Errorf("%w: bug %d (%s) is not resolved", ErrPreconditionNotMet, index, current.ID)
	}

	opts := ledger.CallOpts{From: from, Gas: d.gas.Delete}
	if err := d.session.Ledger().RemoveRecord(ctx, opts, index); err != nil {
		return &CommandError{Command: CommandDelete, Index: index, Err: err}
	}

	d.logger.Printf("Deleted bug %d (%s)", index, current.ID)
	d.reconcile(ctx)
	return nil
}

func (d *Dispatcher) acting() (ledger.Identity, error) {
	from, ok := d.session.Acting()
	if !ok {
		return "", ErrNoIdentity
	}
	return from, nil
}

// reconcile requests a load. A failed load is reported by the loader itself
// and does not turn a successful command into a failure.
func (d *Dispatcher) reconcile(ctx context.Context) {
	if err := d.reconciler.Request(ctx); err != nil {
		d.logger.Printf("Reconciliation after command failed: %v", err)
	}
}
