// Package achievement triggers server-side achievement evaluation after
// successful flushes.
//
// Thresholds only change when server-confirmed counters change, so the check
// is debounced behind the last successful flush rather than run per tap.
package achievement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/pkg/logger"
	"github.com/grandstand/cheer/pkg/metrics"
)

// Default evaluator timing constants.
const (
	defaultDebounce      = 2 * time.Second
	defaultDisplayWindow = 6 * time.Second
)

// Checker asks the backend which achievements unlocked since the last check.
type Checker interface {
	CheckAchievements(ctx context.Context, userID, teamID uuid.UUID) ([]model.Achievement, error)
}

// Evaluator debounces achievement checks and holds the newest unlock for a
// bounded display window.
type Evaluator struct {
	mu         sync.Mutex
	checker    Checker
	userID     uuid.UUID
	teamID     uuid.UUID
	debounce   time.Duration
	display    time.Duration
	pending    *time.Timer
	clearTimer *time.Timer
	current    *model.Achievement
	onUnlock   func(model.Achievement)
	stopped    bool

	ctx    context.Context
	logger logger.Logger
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithDebounce sets the settle delay after a flush.
func WithDebounce(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithDisplayWindow bounds how long an unlock stays visible.
func WithDisplayWindow(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.display = d
		}
	}
}

// WithUnlockHook registers a callback fired when a new unlock surfaces.
func WithUnlockHook(hook func(model.Achievement)) Option {
	return func(e *Evaluator) {
		e.onUnlock = hook
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an evaluator for one supporter and team. ctx bounds
// the lifetime of all checks it issues.
func NewEvaluator(ctx context.Context, checker Checker, userID, teamID uuid.UUID, opts ...Option) *Evaluator {
	e := &Evaluator{
		checker:  checker,
		userID:   userID,
		teamID:   teamID,
		debounce: defaultDebounce,
		display:  defaultDisplayWindow,
		ctx:      ctx,
		logger:   logger.Get().Named("achievement"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ScheduleCheck cancels any pending check and arms a new one a debounce
// interval in the future. Call only after a successful flush.
func (e *Evaluator) ScheduleCheck() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	if e.pending != nil {
		e.pending.Stop()
	}
	e.pending = time.AfterFunc(e.debounce, e.runCheck)
}

// Current returns the unlock inside its display window, if any.
func (e *Evaluator) Current() (model.Achievement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return model.Achievement{}, false
	}
	return *e.current, true
}

// Stop cancels pending timers. Safe to call more than once.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
}

// runCheck asks the backend for new unlocks and surfaces the first one.
// Failures are logged and swallowed; achievements are a non-essential
// enhancement and must never disturb the tap loop.
func (e *Evaluator) runCheck() {
	metrics.RecordAchievementCheck()

	unlocked, err := e.checker.CheckAchievements(e.ctx, e.userID, e.teamID)
	if err != nil {
		e.logger.Debug(e.ctx, "achievement check failed", logger.Error(err))
		return
	}
	if len(unlocked) == 0 {
		return
	}

	first := unlocked[0]

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.current = &first
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.clearTimer = time.AfterFunc(e.display, e.clearCurrent)
	hook := e.onUnlock
	e.mu.Unlock()

	metrics.RecordAchievementUnlock()
	if hook != nil {
		hook(first)
	}
}

func (e *Evaluator) clearCurrent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}
