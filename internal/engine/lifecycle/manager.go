// Package lifecycle owns the state machine of one live engagement session:
// start, time-based extension prompts, manual termination and the recap
// handoff.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/domain/recap"
	sessionrules "github.com/grandstand/cheer/internal/domain/session"
	"github.com/grandstand/cheer/pkg/logger"
	"github.com/grandstand/cheer/pkg/metrics"
)

// Default lifecycle configuration constants.
const (
	defaultPollInterval = 5 * time.Second
	defaultExtension    = 30 * time.Minute
)

// Backend is the slice of the client the manager needs.
type Backend interface {
	SessionByID(ctx context.Context, id uuid.UUID) (model.Session, error)
	StartSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error)
	ExtendSession(ctx context.Context, sessionID, userID uuid.UUID, until time.Time) (model.Session, error)
	EndSession(ctx context.Context, sessionID, userID uuid.UUID) (model.Session, error)
}

// CounterSource supplies the best locally-known counters for the recap.
type CounterSource interface {
	Counters() model.TapCounters
	CallerTaps() int64
}

// Snapshot is the lifecycle state exposed to the UI.
type Snapshot struct {
	Session         model.Session `json:"session"`
	ExtensionPrompt bool          `json:"extension_prompt"`
	EffectiveEnd    time.Time     `json:"effective_end"`
	Gone            bool          `json:"gone"`
}

// Manager polls session state, detects overruns, and gates the role-checked
// transitions.
type Manager struct {
	mu       sync.RWMutex
	backend  Backend
	counters CounterSource
	session  model.Session
	prompt   bool
	prompted bool
	gone     bool
	recap    *model.Recap

	userID uuid.UUID
	role   model.Role

	extension    time.Duration
	pollInterval time.Duration
	now          func() time.Time

	onChange func(Snapshot)
	onEnded  func(model.Recap)

	logger   logger.Logger
	shutdown chan struct{}
	done     chan struct{}
	started  bool
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithExtension sets the fixed duration granted per accepted extension.
func WithExtension(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.extension = d
		}
	}
}

// WithPollInterval sets the session re-read interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCounterSource wires the tap aggregator for recap inputs.
func WithCounterSource(cs CounterSource) Option {
	return func(m *Manager) {
		m.counters = cs
	}
}

// WithChangeHook fires on every state change the UI cares about.
func WithChangeHook(hook func(Snapshot)) Option {
	return func(m *Manager) {
		m.onChange = hook
	}
}

// WithEndedHook fires once when the session ends, with the recap.
func WithEndedHook(hook func(model.Recap)) Option {
	return func(m *Manager) {
		m.onEnded = hook
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager for one session on behalf of one caller.
func NewManager(b Backend, initial model.Session, userID uuid.UUID, role model.Role, opts ...Option) *Manager {
	m := &Manager{
		backend:      b,
		session:      initial,
		userID:       userID,
		role:         role,
		extension:    defaultExtension,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		logger:       logger.Get().Named("lifecycle"),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run launches the poll loop until ctx is canceled or Stop is called.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop halts the poll loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.shutdown)
	<-m.done
}

// Start takes the scheduled session live. Role-gated client-side and again
// by the backend.
func (m *Manager) Start(ctx context.Context) error {
	const op = "lifecycle.start"

	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if !sessionrules.CanStart(m.role) {
		return fmt.Errorf("%s: %w", op, backend.ErrUnauthorized)
	}
	if !sessionrules.CanTransition(s.Status, model.StatusLive) {
		return fmt.Errorf("%s: session is %s: %w", op, s.Status, backend.ErrNotLive)
	}

	started, err := m.backend.StartSession(ctx, s.ID, m.userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.setSession(started)
	return nil
}

// Extend pushes the effective end out by the fixed extension and clears the
// prompt. Accepted only while live and overrun; may be called repeatedly.
func (m *Manager) Extend(ctx context.Context) error {
	const op = "lifecycle.extend"

	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if !sessionrules.CanExtend(s, m.userID, m.role, m.now()) {
		return fmt.Errorf("%s: %w", op, backend.ErrUnauthorized)
	}

	until := m.now().Add(m.extension)
	extended, err := m.backend.ExtendSession(ctx, s.ID, m.userID, until)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordSessionExtension()

	m.mu.Lock()
	m.session = extended
	m.prompt = false
	m.prompted = false
	m.mu.Unlock()

	m.publish()
	return nil
}

// End terminates the session. The recap is computed from the best
// locally-known counters before the termination call completes, so the
// summary renders even if the backend is slow; it is never re-fetched.
func (m *Manager) End(ctx context.Context) error {
	const op = "lifecycle.end"

	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if !sessionrules.CanEnd(s, m.userID, m.role) {
		return fmt.Errorf("%s: %w", op, backend.ErrUnauthorized)
	}

	rc := m.computeRecap(s)

	m.mu.Lock()
	m.recap = &rc
	m.session.Status = model.StatusEnded
	now := m.now()
	m.session.EndedAt = &now
	m.prompt = false
	m.mu.Unlock()

	metrics.UpdateSessionState(string(model.StatusEnded))
	m.publish()
	if m.onEnded != nil {
		m.onEnded(rc)
	}

	if _, err := m.backend.EndSession(ctx, s.ID, m.userID); err != nil {
		// Locally the session stays ended; ending is terminal either way.
		m.logger.Warn(ctx, "end session call failed", logger.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Live implements the acceptance gate for taps and shoutouts.
func (m *Manager) Live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.gone && m.session.Live()
}

// Snapshot returns the current lifecycle view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Session:         m.session,
		ExtensionPrompt: m.prompt,
		EffectiveEnd:    m.session.EffectiveEnd(),
		Gone:            m.gone,
	}
}

// ExtensionPrompt reports whether the continue-or-end choice is pending.
func (m *Manager) ExtensionPrompt() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prompt
}

// Recap returns the summary once the session has ended.
func (m *Manager) Recap() (model.Recap, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.recap == nil {
		return model.Recap{}, false
	}
	return *m.recap, true
}

// Gone reports a terminal not-found state; the view must navigate away.
func (m *Manager) Gone() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gone
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll re-reads the session and evaluates the overrun prompt. Evaluating on
// every poll rather than a dedicated timer keeps the prompt resilient to the
// app being backgrounded and resumed.
func (m *Manager) Poll(ctx context.Context) {
	s, err := m.backend.SessionByID(ctx, m.session.ID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			m.mu.Lock()
			m.gone = true
			m.mu.Unlock()
			m.publish()
			return
		}
		m.logger.Debug(ctx, "session poll failed", logger.Error(err))
		return
	}

	changed := false

	m.mu.Lock()
	// A locally-ended session never resurrects from a stale read.
	if m.session.Status != model.StatusEnded {
		if m.session.Status != s.Status || !m.session.EffectiveEnd().Equal(s.EffectiveEnd()) {
			changed = true
		}
		m.session = s
		if sessionrules.Overrun(s, m.now()) && !m.prompted {
			m.prompt = true
			m.prompted = true
			changed = true
			metrics.RecordExtensionPrompt()
		}
	}
	status := m.session.Status
	m.mu.Unlock()

	metrics.UpdateSessionState(string(status))
	if changed {
		m.publish()
	}
}

func (m *Manager) computeRecap(s model.Session) model.Recap {
	var total, caller int64
	if m.counters != nil {
		total = m.counters.Counters().Session
		caller = m.counters.CallerTaps()
	}
	return recap.Compute(s.StartedAt, m.now(), total, caller)
}

func (m *Manager) setSession(s model.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	metrics.UpdateSessionState(string(s.Status))
	m.publish()
}

func (m *Manager) publish() {
	if m.onChange != nil {
		m.onChange(m.Snapshot())
	}
}
