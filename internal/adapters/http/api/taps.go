// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/grandstand/cheer/internal/domain/model"
)

// TapDependencies defines the interface for tap operations.
type TapDependencies interface {
	// RegisterTap buffers one tap. Rejected when the session is not live.
	RegisterTap(ctx context.Context) error

	// Flush pushes buffered whole batches to the backend.
	Flush(ctx context.Context) error

	Counters() model.TapCounters
	CallerTaps() int64
	Degraded() bool
}

// TapsHandler handles tap registration and counter reads.
type TapsHandler struct {
	deps TapDependencies
}

// NewTapsHandler creates a new taps handler.
func NewTapsHandler(deps TapDependencies) *TapsHandler {
	return &TapsHandler{deps: deps}
}

// HandlePostTap handles POST /taps requests. One request is one tap.
func (h *TapsHandler) HandlePostTap(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_tap"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.RegisterTap(r.Context()); err != nil {
		status, code := statusFromErr(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "buffered"})
}

// HandleFlush handles POST /taps/flush requests, forcing a flush of any
// complete batches ahead of the idle timer.
func (h *TapsHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	const op = "api.flush"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.Flush(r.Context()); err != nil {
		status, code := statusFromErr(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "flushed"})
}

// HandleGetCounters handles GET /counters requests.
func (h *TapsHandler) HandleGetCounters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, countersResponse{
		TapCounters: h.deps.Counters(),
		CallerTaps:  h.deps.CallerTaps(),
		Degraded:    h.deps.Degraded(),
	})
}
