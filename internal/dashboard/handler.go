package dashboard

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
)

// CommandResultData describes a finished command
type CommandResultData struct {
	Command string `json:"command"`
	Index   int    `json:"index"`
	BugID   string `json:"bug_id,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// LoadErrorData describes a failed reconciliation
type LoadErrorData struct {
	// Index of the failing read, -1 for the count read
	Index int    `json:"index"`
	Error string `json:"error"`
}

// StatsData contains bug counts for the current projection
type StatsData struct {
	Total         int            `json:"total"`
	Open          int            `json:"open"`
	Resolved      int            `json:"resolved"`
	Hidden        int            `json:"hidden"`
	ByCriticality map[string]int `json:"by_criticality"`
	Revision      uint64         `json:"revision"`
	LoadErrors    int            `json:"load_errors"`
	Commands      int            `json:"commands"`
	FailedCmds    int            `json:"failed_commands"`
}

// Handler turns engine notifications into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

var _ engine.Sink = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
		stats: StatsData{
			ByCriticality: make(map[string]int),
		},
	}
}

// ProjectionUpdated implements engine.Sink.
func (h *Handler) ProjectionUpdated(p bug.Projection) {
	view := present.NewView(p)
	h.logger.Printf("Projection revision %d: %d bugs", p.Revision, p.Len())

	h.mu.Lock()
	h.stats.Total = view.Total
	h.stats.Open = view.Open
	h.stats.Resolved = len(view.Rows) - view.Open
	h.stats.Hidden = view.Hidden
	h.stats.Revision = p.Revision
	h.stats.ByCriticality = make(map[string]int)
	for _, r := range view.Rows {
		h.stats.ByCriticality[r.Criticality]++
	}
	h.mu.Unlock()

	h.send(MessageTypeProjection, view)
	h.broadcastStats()
}

// LoadFailed implements engine.Sink.
func (h *Handler) LoadFailed(err error) {
	h.logger.Printf("Load failed: %v", err)

	data := LoadErrorData{Index: -1, Error: err.Error()}
	var le *engine.LoadError
	if errors.As(err, &le) {
		data.Index = le.Index
	}

	h.mu.Lock()
	h.stats.LoadErrors++
	h.mu.Unlock()

	h.send(MessageTypeLoadError, data)
	h.broadcastStats()
}

// CommandCompleted implements engine.Sink.
func (h *Handler) CommandCompleted(o engine.Outcome) {
	data := CommandResultData{
		Command: o.Command,
		Index:   o.Index,
		BugID:   o.BugID,
		OK:      o.OK(),
	}
	if o.Err != nil {
		data.Error = o.Err.Error()
	}

	h.mu.Lock()
	h.stats.Commands++
	if !data.OK {
		h.stats.FailedCmds++
	}
	h.mu.Unlock()

	h.send(MessageTypeCommandResult, data)
}

// GetStats returns the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.ByCriticality = make(map[string]int, len(h.stats.ByCriticality))
	for k, v := range h.stats.ByCriticality {
		s.ByCriticality[k] = v
	}
	return s
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	h.send(MessageTypeStats, h.GetStats())
}

func (h *Handler) send(typ MessageType, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	})
}
