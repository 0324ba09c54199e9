// Package present adapts engine state for rendering.
//
// A View is built from a projection and carries per-row affordances:
// resolve is only offered for unresolved bugs, delete is always offered and
// guarded by the engine. Actions binds the command callbacks a renderer
// invokes; outcomes reach the renderer through the next View or an
// engine.Sink notification.
package present

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/engine"
)

// ErrAlreadyResolved is returned by Actions.Resolve for a row the last
// projection shows as resolved. The ledger is not contacted.
var ErrAlreadyResolved = errors.New("bug already resolved")

// ErrNoSuchRow is returned when an index is not in the last projection.
var ErrNoSuchRow = errors.New("no such bug")

// Row is one renderable bug.
type Row struct {
	Index       int    `json:"index" yaml:"index"`
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Criticality string `json:"criticality" yaml:"criticality"`
	Resolved    string `json:"resolved" yaml:"resolved"`
	IsResolved  bool   `json:"is_resolved" yaml:"is_resolved"`
	CanResolve  bool   `json:"can_resolve" yaml:"can_resolve"`
	CanDelete   bool   `json:"can_delete" yaml:"can_delete"`
}

// View is the renderer's input for one projection.
type View struct {
	Rows     []Row     `json:"rows" yaml:"rows"`
	Total    int       `json:"total" yaml:"total"`
	Hidden   int       `json:"hidden" yaml:"hidden"`
	Open     int       `json:"open" yaml:"open"`
	Revision uint64    `json:"revision" yaml:"revision"`
	LoadedAt time.Time `json:"loaded_at" yaml:"loaded_at"`
}

// ResolvedText renders the resolved flag.
func ResolvedText(resolved bool) string {
	if resolved {
		return "Yes"
	}
	return "No"
}

// NewRow builds the row for b.
func NewRow(b bug.Bug) Row {
	return Row{
		Index:       b.Index,
		ID:          b.ID,
		Description: b.Description,
		Criticality: b.Criticality.String(),
		Resolved:    ResolvedText(b.IsResolved),
		IsResolved:  b.IsResolved,
		CanResolve:  !b.IsResolved,
		CanDelete:   true,
	}
}

// NewView builds a view of p.
//
// Records with an empty ID are left out of Rows but still count toward
// Total, and the remaining rows keep their ledger index.
func NewView(p bug.Projection) View {
	v := View{
		Rows:     make([]Row, 0, p.Len()),
		Total:    p.Len(),
		Revision: p.Revision,
		LoadedAt: p.LoadedAt,
	}
	for _, b := range p.Bugs {
		if b.ID == "" {
			v.Hidden++
			continue
		}
		if !b.IsResolved {
			v.Open++
		}
		v.Rows = append(v.Rows, NewRow(b))
	}
	return v
}

// Row returns the visible row at ledger index i.
func (v View) Row(index int) (Row, bool) {
	for _, r := range v.Rows {
		if r.Index == index {
			return r, true
		}
	}
	return Row{}, false
}

// Commander is the command surface Actions drives. *engine.Engine
// implements it.
type Commander interface {
	Projection() bug.Projection
	Refresh(ctx context.Context) error
	AddBug(ctx context.Context, draft *bug.Draft) error
	UpdateStatus(ctx context.Context, index int) error
	DeleteBug(ctx context.Context, index int) error
}

var _ Commander = (*engine.Engine)(nil)

// Actions binds renderer callbacks to an engine.
type Actions struct {
	cmd Commander
}

// NewActions creates Actions for cmd.
func NewActions(cmd Commander) *Actions {
	return &Actions{cmd: cmd}
}

// View returns the view of the engine's current projection.
func (a *Actions) View() View {
	return NewView(a.cmd.Projection())
}

// Add submits draft.
func (a *Actions) Add(ctx context.Context, draft *bug.Draft) error {
	return a.cmd.AddBug(ctx, draft)
}

// Resolve marks the bug at index resolved. It refuses rows that the last
// projection already shows as resolved.
func (a *Actions) Resolve(ctx context.Context, index int) error {
	b, ok := a.cmd.Projection().At(index)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrNoSuchRow, index)
	}
	if b.IsResolved {
		return fmt.Errorf("%w: bug %d (%s)", ErrAlreadyResolved, index, b.ID)
	}
	return a.cmd.UpdateStatus(ctx, index)
}

// Delete deletes the bug at index. The resolved check happens against the
// ledger, not the projection.
func (a *Actions) Delete(ctx context.Context, index int) error {
	return a.cmd.DeleteBug(ctx, index)
}

// Refresh requests a reconciliation.
func (a *Actions) Refresh(ctx context.Context) error {
	return a.cmd.Refresh(ctx)
}
