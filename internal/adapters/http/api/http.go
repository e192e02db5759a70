// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/engine/lifecycle"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TapDependencies
	SessionDependencies
	RosterDependencies
	ShoutoutDependencies
	AchievementDependencies
	LeaderboardDependencies
}

// SupporterRank mirrors the read shape returned by leaderboard queries.
type SupporterRank = backend.SupporterRank

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	tapsHandler        *TapsHandler
	sessionHandler     *SessionHandler
	rosterHandler      *RosterHandler
	shoutoutsHandler   *ShoutoutsHandler
	achievementHandler *AchievementHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		tapsHandler:        NewTapsHandler(deps),
		sessionHandler:     NewSessionHandler(deps),
		rosterHandler:      NewRosterHandler(deps),
		shoutoutsHandler:   NewShoutoutsHandler(deps),
		achievementHandler: NewAchievementHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/taps", MetricsMiddleware(s.tapsHandler.HandlePostTap, "taps"))
	mux.HandleFunc("/taps/flush", MetricsMiddleware(s.tapsHandler.HandleFlush, "flush"))
	mux.HandleFunc("/counters", MetricsMiddleware(s.tapsHandler.HandleGetCounters, "counters"))
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session"))
	mux.HandleFunc("/session/start", MetricsMiddleware(s.sessionHandler.HandleStart, "session_start"))
	mux.HandleFunc("/session/extend", MetricsMiddleware(s.sessionHandler.HandleExtend, "session_extend"))
	mux.HandleFunc("/session/end", MetricsMiddleware(s.sessionHandler.HandleEnd, "session_end"))
	mux.HandleFunc("/session/recap", MetricsMiddleware(s.sessionHandler.HandleRecap, "session_recap"))
	mux.HandleFunc("/roster", MetricsMiddleware(s.rosterHandler.HandleGetRoster, "roster"))
	mux.HandleFunc("/shoutouts", MetricsMiddleware(s.shoutoutsHandler.HandlePostShoutout, "shoutouts"))
	mux.HandleFunc("/achievement", MetricsMiddleware(s.achievementHandler.HandleGetAchievement, "achievement"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
}

// shoutoutRequest mirrors the schema for POST /shoutouts.
type shoutoutRequest struct {
	TargetID string `json:"target_id"`
	Message  string `json:"message"`
}

func (s shoutoutRequest) validate() error {
	if _, err := uuid.Parse(s.TargetID); err != nil {
		return errors.New("invalid target_id")
	}
	if !model.ReactionAllowed(s.Message) {
		return errors.New("message not on the reaction allow-list")
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
}

type countersResponse struct {
	model.TapCounters
	CallerTaps int64 `json:"caller_taps"`
	Degraded   bool  `json:"degraded"`
}

type sessionResponse struct {
	lifecycle.Snapshot
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFromErr translates engine and backend failures to HTTP statuses.
func statusFromErr(err error) (int, string) {
	switch {
	case errors.Is(err, backend.ErrNotLive):
		return http.StatusForbidden, "not_live"
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, backend.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, backend.ErrTransient):
		return http.StatusServiceUnavailable, "transient"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
