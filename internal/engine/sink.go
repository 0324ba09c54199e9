package engine

import (
	"time"

	"github.com/Mschirtzinger/bugledger/internal/bug"
)

// Command names used in outcomes.
const (
	CommandAdd          = "add"
	CommandUpdateStatus = "update_status"
	CommandDelete       = "delete"
)

// Outcome is the terminal result of one command.
type Outcome struct {
	Command string
	// Index is the addressed bug, or -1 for add.
	Index int
	// BugID is set for add.
	BugID string
	Err   error
	At    time.Time
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Sink receives everything the engine reports to the presentation boundary.
//
// Methods are called synchronously from the goroutine that ran the
// operation and must not block.
type Sink interface {
	ProjectionUpdated(p bug.Projection)
	LoadFailed(err error)
	CommandCompleted(o Outcome)
}

// Sinks fans out to several sinks in order.
type Sinks []Sink

func (s Sinks) ProjectionUpdated(p bug.Projection) {
	for _, sink := range s {
		sink.ProjectionUpdated(p)
	}
}

func (s Sinks) LoadFailed(err error) {
	for _, sink := range s {
		sink.LoadFailed(err)
	}
}

func (s Sinks) CommandCompleted(o Outcome) {
	for _, sink := range s {
		sink.CommandCompleted(o)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) ProjectionUpdated(bug.Projection) {}
func (NopSink) LoadFailed(error) {}
func (NopSink) CommandCompleted(Outcome) {}
