// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle of a cheering session.
type SessionStatus string

// Session lifecycle states. Extended is live with a pushed-out end time;
// it never reorders the scheduled -> live -> ended progression.
const (
	StatusScheduled SessionStatus = "scheduled"
	StatusLive      SessionStatus = "live"
	StatusExtended  SessionStatus = "extended"
	StatusEnded     SessionStatus = "ended"
)

// Role identifies what a user may do inside a session.
type Role string

// Roles recognized by the engine.
const (
	RoleOwner     Role = "owner"
	RoleCoach     Role = "coach"
	RoleStaff     Role = "staff"
	RoleSupporter Role = "supporter"
)

// Session is one live cheering window tied to a scheduled team event.
type Session struct {
	ID            uuid.UUID
	TeamID        uuid.UUID
	EventID       uuid.UUID
	Status        SessionStatus
	ScheduledEnd  time.Time
	ExtendedUntil *time.Time
	StartedBy     uuid.UUID
	StartedAt     time.Time
	EndedAt       *time.Time
	CreatedAt     time.Time
}

// EffectiveEnd returns ExtendedUntil when set, else ScheduledEnd.
func (s Session) EffectiveEnd() time.Time {
	if s.ExtendedUntil != nil {
		return *s.ExtendedUntil
	}
	return s.ScheduledEnd
}

// Live reports whether the session currently accepts taps and shoutouts.
func (s Session) Live() bool {
	return s.Status == StatusLive || s.Status == StatusExtended
}

// TapCounters is the read-mostly projection shown to the UI.
// Session and Season are server-owned and only move forward; Pending is
// client-owned and shrinks to its remainder on every successful flush.
type TapCounters struct {
	Pending int64 `json:"pending"`
	Session int64 `json:"session"`
	Season  int64 `json:"season"`
}

// BatchResult is the backend's authoritative answer to a tap batch.
type BatchResult struct {
	SessionTapCount int64 `json:"session_tap_count"`
	SeasonTotal     int64 `json:"season_total"`
}

// Shoutout is a single targeted reaction, created exactly once per user
// action, never batched, never mutated.
type Shoutout struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	TargetID  uuid.UUID `json:"target_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Achievement is a server-computed unlock; the engine never evaluates
// eligibility itself.
type Achievement struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Threshold  int64     `json:"threshold"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Recap is the post-session summary, derived once at session end.
type Recap struct {
	TotalTaps     int64  `json:"total_taps"`
	CallerTaps    int64  `json:"caller_taps"`
	DurationLabel string `json:"duration_label"`
}

// RosterMember is a member who may receive shoutouts.
type RosterMember struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Role   Role      `json:"role"`
}

// AllowedReactions is the emoji allow-list for shoutout messages.
var AllowedReactions = []string{"🎉", "👏", "🔥", "❤️", "⭐", "💪"}

// ReactionAllowed reports whether a shoutout message is on the allow-list.
func ReactionAllowed(message string) bool {
	for _, r := range AllowedReactions {
		if r == message {
			return true
		}
	}
	return false
}
