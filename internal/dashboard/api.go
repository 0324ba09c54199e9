package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/present"
)

// DraftRequest is the body of POST /api/bugs.
type DraftRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Criticality string `json:"criticality,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// API exposes the bug commands over HTTP.
type API struct {
	actions *present.Actions
	logger  *log.Logger
	mux     *http.ServeMux
}

// NewAPI creates the JSON API for actions.
//
// Routes:
//
//	GET    /api/bugs                 current view
//	POST   /api/bugs                 add a bug from a DraftRequest
//	POST   /api/bugs/{index}/resolve mark a bug resolved
//	DELETE /api/bugs/{index}         delete a resolved bug
//	POST   /api/refresh              reconcile now
func NewAPI(actions *present.Actions, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Default()
	}
	a := &API{actions: actions, logger: logger, mux: http.NewServeMux()}

	a.mux.HandleFunc("GET /api/bugs", a.handleList)
	a.mux.HandleFunc("POST /api/bugs", a.handleAdd)
	a.mux.HandleFunc("POST /api/bugs/{index}/resolve", a.handleResolve)
	a.mux.HandleFunc("DELETE /api/bugs/{index}", a.handleDelete)
	a.mux.HandleFunc("POST /api/refresh", a.handleRefresh)
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.actions.View())
}

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	draft := bug.NewDraft()
	draft.ID = req.ID
	draft.Description = req.Description
	if req.Criticality != "" {
		draft.Criticality = req.Criticality
	}

	if err := a.actions.Add(r.Context(), draft); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.actions.View())
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	a.withIndex(w, r, a.actions.Resolve)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	a.withIndex(w, r, a.actions.Delete)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.actions.Refresh(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.actions.View())
}

func (a *API) withIndex(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid index %q", r.PathValue("index")))
		return
	}
	if err := fn(r.Context(), index); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.actions.View())
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Printf("API error: %v", err)
	}
	writeError(w, status, err)
}

// StatusFor maps a command or load error to an HTTP status code.
func StatusFor(err error) int {
	var (
		ce *engine.CommandError
		le *engine.LoadError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, bug.ErrInvalidCriticality):
		return http.StatusBadRequest
	case errors.Is(err, present.ErrNoSuchRow), errors.Is(err, ledger.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPreconditionNotMet), errors.Is(err, present.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoIdentity), errors.Is(err, engine.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce), errors.As(err, &le):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
