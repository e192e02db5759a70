// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// ShoutoutDependencies defines the interface for shoutout dispatch.
type ShoutoutDependencies interface {
	SendShoutout(ctx context.Context, targetID uuid.UUID, message string) error
}

// ShoutoutsHandler handles shoutout requests.
type ShoutoutsHandler struct {
	deps ShoutoutDependencies
}

// NewShoutoutsHandler creates a new shoutouts handler.
func NewShoutoutsHandler(deps ShoutoutDependencies) *ShoutoutsHandler {
	return &ShoutoutsHandler{deps: deps}
}

// HandlePostShoutout handles POST /shoutouts requests. One request is one
// shoutout; there is no batching and no retry.
func (h *ShoutoutsHandler) HandlePostShoutout(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_shoutout"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req shoutoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	targetID, _ := uuid.Parse(req.TargetID)
	if err := h.deps.SendShoutout(r.Context(), targetID, req.Message); err != nil {
		status, code := statusFromErr(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "sent"})
}
