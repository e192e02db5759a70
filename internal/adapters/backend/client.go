package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/domain/model"
)

// SupporterRank is one row of the season tap leaderboard for a team.
type SupporterRank struct {
	Rank   int       `json:"rank"`
	UserID uuid.UUID `json:"user_id"`
	Taps   int64     `json:"taps"`
}

// Client is the engine's view of the surrounding system. Wire format is the
// collaborator's concern; implementations translate their own failures into
// this package's sentinel kinds.
type Client interface {
	// SessionByID reads one session. Returns ErrNotFound for unknown ids.
	SessionByID(ctx context.Context, id uuid.UUID) (model.Session, error)

	// SessionByEvent reads the session linked to a scheduled event.
	SessionByEvent(ctx context.Context, eventID uuid.UUID) (model.Session, error)

	// Roster lists who may receive shoutouts in a session.
	Roster(ctx context.Context, sessionID uuid.UUID) ([]model.RosterMember, error)

	// SessionTapCount reads the authoritative tap count for a session.
	SessionTapCount(ctx context.Context, sessionID uuid.UUID) (int64, error)

	// SendTapBatch records count batched taps for a supporter and returns
	// the authoritative session and season totals.
	SendTapBatch(ctx context.Context, sessionID, userID uuid.UUID, count int64) (model.BatchResult, error)

	// SendShoutout delivers a single reaction. Duplicate ids are acked once.
	SendShoutout(ctx context.Context, s model.Shoutout) error

	// SeasonTotal reads a supporter's cumulative taps across a team's sessions.
	SeasonTotal(ctx context.Context, userID, teamID uuid.UUID) (int64, error)

	// CheckAchievements returns achievements newly unlocked since the last check.
	CheckAchievements(ctx context.Context, userID, teamID uuid.UUID) ([]model.Achievement, error)

	// StartSession takes a scheduled session live. Role-gated.
	StartSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error)

	// ExtendSession pushes the effective end of a live session. Role-gated.
	ExtendSession(ctx context.Context, sessionID, userID uuid.UUID, until time.Time) (model.Session, error)

	// EndSession terminates a live session. Role-gated, terminal.
	EndSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error)

	// TopSupporters returns the season tap leaderboard for a team.
	TopSupporters(ctx context.Context, teamID uuid.UUID, n int) ([]SupporterRank, error)
}
