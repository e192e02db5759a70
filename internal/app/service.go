// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/adapters/ws"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/engine/achievement"
	"github.com/grandstand/cheer/internal/engine/connectivity"
	"github.com/grandstand/cheer/internal/engine/lifecycle"
	"github.com/grandstand/cheer/internal/engine/shoutout"
	"github.com/grandstand/cheer/internal/engine/tap"
	"github.com/grandstand/cheer/pkg/logger"
)

// Default thresholds the in-memory backend starts with.
var defaultAchievements = []backend.AchievementDef{
	{ID: "bronze_supporter", Name: "Bronze Supporter", Threshold: 100},
	{ID: "silver_supporter", Name: "Silver Supporter", Threshold: 500},
	{ID: "gold_supporter", Name: "Gold Supporter", Threshold: 2000},
}

// counterSourceRef breaks the construction cycle between the lifecycle
// manager (which needs counters for the recap) and the tap aggregator
// (which needs the manager as its liveness gate).
type counterSourceRef struct {
	mu    sync.RWMutex
	inner lifecycle.CounterSource
}

func (r *counterSourceRef) set(cs lifecycle.CounterSource) {
	r.mu.Lock()
	r.inner = cs
	r.mu.Unlock()
}

func (r *counterSourceRef) Counters() model.TapCounters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.inner == nil {
		return model.TapCounters{}
	}
	return r.inner.Counters()
}

func (r *counterSourceRef) CallerTaps() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.inner == nil {
		return 0
	}
	return r.inner.CallerTaps()
}

// Service wires the engine components for one caller in one session and
// implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	backend    backend.Client
	aggregator *tap.Aggregator
	manager    *lifecycle.Manager
	evaluator  *achievement.Evaluator
	dispatcher *shoutout.Dispatcher
	monitor    *connectivity.Monitor
	hub        *ws.Hub

	// Identity
	userID  uuid.UUID
	role    model.Role
	eventID uuid.UUID

	// Configuration
	batchSize          int
	idleFlushDelay     time.Duration
	counterPoll        time.Duration
	sessionPoll        time.Duration
	achievementDelay   time.Duration
	achievementDisplay time.Duration
	extension          time.Duration

	// State
	session model.Session
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend injects a backend client. When omitted the service runs
// against a seeded in-memory backend.
func WithBackend(c backend.Client) Option {
	return func(s *Service) {
		s.backend = c
	}
}

// WithHub injects the WebSocket hub used for pushes.
func WithHub(h *ws.Hub) Option {
	return func(s *Service) {
		s.hub = h
	}
}

// WithIdentity sets the caller the engine acts for.
func WithIdentity(userID uuid.UUID, role model.Role) Option {
	return func(s *Service) {
		s.userID = userID
		s.role = role
	}
}

// WithEventID binds the engine to the session linked to a scheduled event.
// Required when a backend is injected; the seeded backend supplies its own.
func WithEventID(eventID uuid.UUID) Option {
	return func(s *Service) {
		s.eventID = eventID
	}
}

// WithBatchSize sets the tap batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithIdleFlushDelay sets the idle flush delay.
func WithIdleFlushDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleFlushDelay = d
		}
	}
}

// WithCounterPollInterval sets the server counter reconciliation interval.
func WithCounterPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.counterPoll = d
		}
	}
}

// WithSessionPollInterval sets the session state poll interval.
func WithSessionPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionPoll = d
		}
	}
}

// WithAchievementTiming sets the check debounce and the unlock display
// window.
func WithAchievementTiming(debounce, display time.Duration) Option {
	return func(s *Service) {
		if debounce > 0 {
			s.achievementDelay = debounce
		}
		if display > 0 {
			s.achievementDisplay = display
		}
	}
}

// WithExtension sets the duration granted per accepted session extension.
func WithExtension(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.extension = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		userID:             uuid.New(),
		role:               model.RoleOwner,
		batchSize:          3,
		idleFlushDelay:     5 * time.Second,
		counterPoll:        4 * time.Second,
		sessionPoll:        5 * time.Second,
		achievementDelay:   2 * time.Second,
		achievementDisplay: 6 * time.Second,
		extension:          30 * time.Minute,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the engine components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.hub == nil {
		s.hub = ws.NewHub()
	}

	s.logger.Info(ctx, "starting cheer engine...")

	if s.backend == nil {
		s.backend = s.seedBackend(ctx)
	}

	session, err := s.backend.SessionByEvent(ctx, s.eventID)
	if err != nil {
		return fmt.Errorf("resolve session for event %s: %w", s.eventID, err)
	}
	s.session = session

	s.monitor = connectivity.NewMonitor(
		connectivity.WithChangeHook(func(degraded bool) {
			s.hub.Broadcast(ws.Event{Type: ws.EventNotice, Data: map[string]any{
				"degraded": degraded,
			}})
		}),
	)

	s.evaluator = achievement.NewEvaluator(ctx, s.backend, s.userID, session.TeamID,
		achievement.WithDebounce(s.achievementDelay),
		achievement.WithDisplayWindow(s.achievementDisplay),
		achievement.WithUnlockHook(func(a model.Achievement) {
			s.hub.Broadcast(ws.Event{Type: ws.EventAchievement, Data: a})
		}),
	)

	counters := &counterSourceRef{}
	s.manager = lifecycle.NewManager(s.backend, session, s.userID, s.role,
		lifecycle.WithExtension(s.extension),
		lifecycle.WithPollInterval(s.sessionPoll),
		lifecycle.WithCounterSource(counters),
		lifecycle.WithChangeHook(func(snap lifecycle.Snapshot) {
			s.hub.Broadcast(ws.Event{Type: ws.EventSession, Data: snap})
		}),
		lifecycle.WithEndedHook(func(rc model.Recap) {
			s.hub.Broadcast(ws.Event{Type: ws.EventSession, Data: map[string]any{
				"status": model.StatusEnded,
				"recap":  rc,
			}})
		}),
	)

	s.aggregator = tap.NewAggregator(s.backend, s.backend, s.manager, session.ID, s.userID,
		tap.WithBatchSize(s.batchSize),
		tap.WithIdleFlushDelay(s.idleFlushDelay),
		tap.WithPollInterval(s.counterPoll),
		tap.WithHealthMonitor(s.monitor),
		tap.WithFlushedHook(func() { s.evaluator.ScheduleCheck() }),
		tap.WithUpdateHook(func(c model.TapCounters) {
			s.hub.Broadcast(ws.Event{Type: ws.EventCounters, Data: c})
		}),
		tap.WithWarningHook(func(msg string) {
			s.hub.Broadcast(ws.Event{Type: ws.EventNotice, Data: map[string]any{
				"warning": msg,
			}})
		}),
		tap.WithCelebrationHook(func(delta int64) {
			s.hub.Broadcast(ws.Event{Type: ws.EventNotice, Data: map[string]any{
				"new_taps": delta,
			}})
		}),
	)
	counters.set(s.aggregator)

	s.dispatcher = shoutout.NewDispatcher(s.backend, s.manager, session.ID, s.userID,
		shoutout.WithErrorHook(func(err error) {
			s.hub.Broadcast(ws.Event{Type: ws.EventNotice, Data: map[string]any{
				"shoutout_error": err.Error(),
			}})
		}),
	)

	s.manager.Run(ctx)
	s.aggregator.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "cheer engine started",
		logger.String("session_id", session.ID.String()),
		logger.String("user_id", s.userID.String()),
		logger.Int("batch_size", s.batchSize),
	)

	return nil
}

// Stop gracefully shuts down the engine. The aggregator stops first so its
// final flush runs while the backend is still reachable.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping cheer engine...")

	if s.aggregator != nil {
		s.aggregator.Stop()
	}
	if s.evaluator != nil {
		s.evaluator.Stop()
	}
	if s.manager != nil {
		s.manager.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "cheer engine stopped")
}

// Hub exposes the push hub for route registration.
func (s *Service) Hub() *ws.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// RegisterTap buffers one tap for the caller.
func (s *Service) RegisterTap(ctx context.Context) error {
	return s.aggregator.RegisterTap(ctx)
}

// Flush pushes buffered whole batches to the backend.
func (s *Service) Flush(ctx context.Context) error {
	return s.aggregator.Flush(ctx)
}

// Counters returns the current tap counter projection.
func (s *Service) Counters() model.TapCounters {
	return s.aggregator.Counters()
}

// CallerTaps returns the caller's contribution for the recap.
func (s *Service) CallerTaps() int64 {
	return s.aggregator.CallerTaps()
}

// Degraded reports whether connectivity is currently degraded.
func (s *Service) Degraded() bool {
	return s.monitor.Degraded()
}

// SetDeviceOnline feeds device connectivity transitions into the monitor.
func (s *Service) SetDeviceOnline(online bool) {
	s.monitor.SetDeviceOnline(online)
}

// SessionSnapshot returns the lifecycle view of the session.
func (s *Service) SessionSnapshot() lifecycle.Snapshot {
	return s.manager.Snapshot()
}

// StartSession takes the session live.
func (s *Service) StartSession(ctx context.Context) error {
	return s.manager.Start(ctx)
}

// ExtendSession pushes the session end out by the configured extension.
func (s *Service) ExtendSession(ctx context.Context) error {
	return s.manager.Extend(ctx)
}

// EndSession terminates the session and freezes the recap.
func (s *Service) EndSession(ctx context.Context) error {
	return s.manager.End(ctx)
}

// Recap returns the post-session summary once the session has ended.
func (s *Service) Recap() (model.Recap, bool) {
	return s.manager.Recap()
}

// Roster lists the members who may receive shoutouts.
func (s *Service) Roster(ctx context.Context) ([]model.RosterMember, error) {
	members, err := s.backend.Roster(ctx, s.session.ID)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return members, nil
}

// SendShoutout dispatches one shoutout to a roster member.
func (s *Service) SendShoutout(ctx context.Context, targetID uuid.UUID, message string) error {
	return s.dispatcher.Send(ctx, targetID, message)
}

// CurrentAchievement returns the unlock inside its display window, if any.
func (s *Service) CurrentAchievement() (model.Achievement, bool) {
	return s.evaluator.Current()
}

// TopSupporters ranks the season's top supporters for the team.
func (s *Service) TopSupporters(ctx context.Context, n int) ([]backend.SupporterRank, error) {
	ranks, err := s.backend.TopSupporters(ctx, s.session.TeamID, n)
	if err != nil {
		return nil, fmt.Errorf("top supporters: %w", err)
	}
	return ranks, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"batch_size": s.batchSize,
	}

	if s.started {
		counters := s.aggregator.Counters()
		snap := s.manager.Snapshot()

		stats["pending_taps"] = counters.Pending
		stats["session_taps"] = counters.Session
		stats["season_total"] = counters.Season
		stats["session_status"] = string(snap.Session.Status)
		stats["extension_prompt"] = snap.ExtensionPrompt
		stats["degraded"] = s.monitor.Degraded()
		stats["ws_clients"] = s.hub.ClientCount()
	}

	return stats
}

// seedBackend builds the self-contained in-memory backend with a live demo
// session owned by the configured caller.
func (s *Service) seedBackend(ctx context.Context) *backend.InMemory {
	b := backend.NewInMemory(
		backend.WithAchievements(defaultAchievements),
	)

	teamID := uuid.New()
	s.eventID = uuid.New()
	session := b.CreateSession(ctx, teamID, s.eventID, time.Now().Add(90*time.Minute))

	b.AddRosterMember(ctx, session.ID, model.RosterMember{
		UserID: s.userID, Name: "You", Role: s.role,
	})
	b.AddRosterMember(ctx, session.ID, model.RosterMember{
		UserID: uuid.New(), Name: "Sam", Role: model.RoleCoach,
	})
	b.AddRosterMember(ctx, session.ID, model.RosterMember{
		UserID: uuid.New(), Name: "Riley", Role: model.RoleSupporter,
	})

	if _, err := b.StartSession(ctx, session.ID, s.userID); err != nil {
		s.logger.Warn(ctx, "seed session start failed", logger.Error(err))
	}

	return b
}
