// Package tap buffers high-frequency tap events, flushes batched deltas to
// the backend, and reconciles the local remainder against server-confirmed
// counts.
//
// Raw per-tap network calls would be abusive to the server and wasteful of
// battery for an interaction whose value is aggregate enthusiasm. Batching
// trades a few seconds of display latency for an order-of-magnitude
// reduction in request volume; the remainder-carry invariant guarantees no
// tap is silently dropped on the client side.
package tap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/pkg/logger"
	"github.com/grandstand/cheer/pkg/metrics"
)

// Default aggregator configuration constants.
const (
	defaultBatchSize      = 3
	defaultIdleFlushDelay = 5 * time.Second
	defaultPollInterval   = 4 * time.Second
	stopFlushTimeout      = 2 * time.Second
)

// Batcher sends one batched delta and returns the authoritative totals.
type Batcher interface {
	SendTapBatch(ctx context.Context, sessionID, userID uuid.UUID, count int64) (model.BatchResult, error)
}

// CountReader re-reads the authoritative session tap count; other
// supporters tap concurrently, so the display must track the server.
type CountReader interface {
	SessionTapCount(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// LiveChecker gates tap acceptance on the session being live.
type LiveChecker interface {
	Live() bool
}

// HealthMonitor receives poll outcomes and answers whether the link is
// degraded (celebratory feedback is suppressed while it is).
type HealthMonitor interface {
	ReportReadOutcome(err error)
	Degraded() bool
}

// Aggregator owns the local tap buffer for one supporter in one session.
type Aggregator struct {
	mu             sync.Mutex
	local          int64 // taps buffered since the last successful flush
	registered     int64 // all taps ever accepted, for stats
	callerSession  int64 // server-confirmed caller contribution this session
	displaySession int64
	displaySeason  int64
	idle           *time.Timer

	inFlight atomic.Bool

	batchSize    int64
	idleDelay    time.Duration
	pollInterval time.Duration

	batcher Batcher
	reader  CountReader
	live    LiveChecker
	health  HealthMonitor

	onFlushed func()
	onUpdate  func(model.TapCounters)
	onWarning func(string)
	onNewTaps func(delta int64)

	sessionID uuid.UUID
	userID    uuid.UUID

	ctx      context.Context
	logger   logger.Logger
	shutdown chan struct{}
	done     chan struct{}
	started  bool
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithBatchSize sets the batch threshold.
func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = int64(n)
		}
	}
}

// WithIdleFlushDelay sets the idle timer restarted on every tap.
func WithIdleFlushDelay(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.idleDelay = d
		}
	}
}

// WithPollInterval sets the authoritative count re-read interval.
func WithPollInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithHealthMonitor wires the connectivity monitor.
func WithHealthMonitor(h HealthMonitor) Option {
	return func(a *Aggregator) {
		a.health = h
	}
}

// WithFlushedHook fires after every successful flush.
func WithFlushedHook(hook func()) Option {
	return func(a *Aggregator) {
		a.onFlushed = hook
	}
}

// WithUpdateHook fires whenever displayed counters change.
func WithUpdateHook(hook func(model.TapCounters)) Option {
	return func(a *Aggregator) {
		a.onUpdate = hook
	}
}

// WithWarningHook receives one-shot user-visible warnings.
func WithWarningHook(hook func(msg string)) Option {
	return func(a *Aggregator) {
		a.onWarning = hook
	}
}

// WithCelebrationHook fires when the poll observes taps from other
// supporters; suppressed while the connection is degraded.
func WithCelebrationHook(hook func(delta int64)) Option {
	return func(a *Aggregator) {
		a.onNewTaps = hook
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator for one supporter in one session.
func NewAggregator(batcher Batcher, reader CountReader, live LiveChecker, sessionID, userID uuid.UUID, opts ...Option) *Aggregator {
	a := &Aggregator{
		batchSize:    defaultBatchSize,
		idleDelay:    defaultIdleFlushDelay,
		pollInterval: defaultPollInterval,
		batcher:      batcher,
		reader:       reader,
		live:         live,
		sessionID:    sessionID,
		userID:       userID,
		ctx:          context.Background(),
		logger:       logger.Get().Named("tap"),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start launches the reconciliation poll loop. ctx bounds all background
// network calls the aggregator issues.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return
	}
	a.started = true
	a.ctx = ctx
	go a.run(ctx)
}

// RegisterTap accepts one tap: increments the local buffer, re-arms the idle
// timer, and triggers a flush when the buffer hits an exact batch multiple.
// A tap outside a live session is a no-op and increments nothing.
func (a *Aggregator) RegisterTap(ctx context.Context) error {
	if !a.live.Live() {
		metrics.RecordTapRejected()
		return backend.ErrNotLive
	}

	a.mu.Lock()
	a.local++
	a.registered++
	local := a.local
	if a.idle == nil {
		a.idle = time.AfterFunc(a.idleDelay, a.idleFlush)
	} else {
		a.idle.Reset(a.idleDelay)
	}
	a.mu.Unlock()

	metrics.RecordTapRegistered()
	metrics.UpdatePendingBuffer(local)
	a.publish()

	if local%a.batchSize == 0 {
		go func() {
			_ = a.Flush(a.ctx)
		}()
	}
	return nil
}

// Flush sends floor(local/batchSize) as one batched delta and keeps the
// remainder. Below the threshold it is a no-op with no network call. An
// in-flight guard collapses concurrent invocations into at most one call;
// on failure the buffer is left untouched so the next trigger retries the
// same, larger count.
func (a *Aggregator) Flush(ctx context.Context) error {
	if !a.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer a.inFlight.Store(false)

	a.mu.Lock()
	toSend := a.local / a.batchSize
	a.mu.Unlock()

	if toSend == 0 {
		return nil
	}

	start := time.Now()
	res, err := a.batcher.SendTapBatch(ctx, a.sessionID, a.userID, toSend)
	metrics.RecordFlushLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		switch {
		case errors.Is(err, backend.ErrRateLimited):
			metrics.RecordFlushRateLimited()
			a.warn("You're cheering faster than the server can count. Hold on a moment.")
		default:
			metrics.RecordFlushError()
		}
		a.logger.Debug(a.ctx, "flush failed; buffer preserved",
			logger.Int64("buffered", a.Counters().Pending),
			logger.Error(err),
		)
		return err
	}

	a.mu.Lock()
	a.local -= toSend * a.batchSize
	a.callerSession += toSend
	a.displaySession = res.SessionTapCount
	a.displaySeason = res.SeasonTotal
	local := a.local
	a.mu.Unlock()

	metrics.RecordFlush()
	metrics.UpdatePendingBuffer(local)
	metrics.UpdateSessionTapCount(res.SessionTapCount)
	metrics.UpdateSeasonTotal(res.SeasonTotal)
	a.publish()

	if a.onFlushed != nil {
		a.onFlushed()
	}
	return nil
}

// Counters returns the current display projection.
func (a *Aggregator) Counters() model.TapCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.TapCounters{
		Pending: a.local,
		Session: a.displaySession,
		Season:  a.displaySeason,
	}
}

// CallerTaps returns the caller's best-known session contribution: the
// server-confirmed count plus whole batches still buffered locally.
func (a *Aggregator) CallerTaps() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callerSession + a.local/a.batchSize
}

// Registered returns the number of taps ever accepted.
func (a *Aggregator) Registered() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered
}

// Stop cancels timers, halts the poll loop and attempts one final flush so
// whole buffered batches are not stranded. The sub-batch remainder is
// intentionally abandoned with the session.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	if a.idle != nil {
		a.idle.Stop()
	}
	a.mu.Unlock()

	close(a.shutdown)
	<-a.done

	ctx, cancel := context.WithTimeout(context.Background(), stopFlushTimeout)
	defer cancel()
	_ = a.Flush(ctx)
}

// run is the reconciliation loop: it periodically re-reads the authoritative
// session count and overwrites the display, because the server always wins.
func (a *Aggregator) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.shutdown:
			return
		case <-ticker.C:
			a.reconcile(ctx)
		}
	}
}

// reconcile performs one authoritative re-read and feeds the outcome to the
// connectivity monitor.
func (a *Aggregator) reconcile(ctx context.Context) {
	count, err := a.reader.SessionTapCount(ctx, a.sessionID)
	if a.health != nil {
		a.health.ReportReadOutcome(err)
	}
	if err != nil {
		a.logger.Debug(ctx, "session count read failed", logger.Error(err))
		return
	}

	a.mu.Lock()
	prev := a.displaySession
	a.displaySession = count
	a.mu.Unlock()

	metrics.UpdateSessionTapCount(count)

	if count > prev && a.onNewTaps != nil {
		degraded := a.health != nil && a.health.Degraded()
		if !degraded {
			a.onNewTaps(count - prev)
		}
	}
	a.publish()
}

// idleFlush fires when no tap arrived for the idle window.
func (a *Aggregator) idleFlush() {
	_ = a.Flush(a.ctx)
}

func (a *Aggregator) publish() {
	if a.onUpdate != nil {
		a.onUpdate(a.Counters())
	}
}

func (a *Aggregator) warn(msg string) {
	if a.onWarning != nil {
		a.onWarning(msg)
	}
}
