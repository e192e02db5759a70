// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/engine/lifecycle"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	SessionSnapshot() lifecycle.Snapshot
	StartSession(ctx context.Context) error
	ExtendSession(ctx context.Context) error
	EndSession(ctx context.Context) error
	Recap() (model.Recap, bool)
}

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap := h.deps.SessionSnapshot()
	if snap.Gone {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: snap})
}

// HandleStart handles POST /session/start requests.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.session_start", h.deps.StartSession)
}

// HandleExtend handles POST /session/extend requests.
func (h *SessionHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.session_extend", h.deps.ExtendSession)
}

// HandleEnd handles POST /session/end requests.
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.session_end", h.deps.EndSession)
}

// HandleRecap handles GET /session/recap requests. Available only once the
// session has ended.
func (h *SessionHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rc, ok := h.deps.Recap()
	if !ok {
		writeError(w, http.StatusNotFound, "not_ended", nil)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) error) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := fn(r.Context()); err != nil {
		status, code := statusFromErr(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: h.deps.SessionSnapshot()})
}
