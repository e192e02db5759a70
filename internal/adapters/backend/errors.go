// Package backend defines the client contract for the collaborator services.
package backend

import "errors"

// Sentinel kinds for backend failures. The engine folds every backend error
// into one of these so callers can branch with errors.Is.
var (
	// ErrTransient covers unreachable hosts and timeouts; the caller's
	// buffer is preserved and the next trigger retries.
	ErrTransient = errors.New("transient backend failure")

	// ErrRateLimited means the server rejected a batch for pacing; the
	// buffer is preserved and surfaced as a one-shot warning.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized covers role-gated actions attempted by the wrong
	// caller; the action is a no-op.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the session or event does not exist; terminal,
	// never retried.
	ErrNotFound = errors.New("not found")

	// ErrNotLive means the session does not currently accept interactions.
	ErrNotLive = errors.New("session not live")
)
