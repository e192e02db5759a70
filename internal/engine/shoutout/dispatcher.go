// Package shoutout sends targeted reactions to roster members. Every send is
// a single unbatched call tied to one user action; there is no retry and no
// queue, so a supporter never sees a shoutout arrive twice.
package shoutout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/pkg/logger"
	"github.com/grandstand/cheer/pkg/metrics"
)

// Sender is the slice of the backend client the dispatcher needs.
type Sender interface {
	SendShoutout(ctx context.Context, s model.Shoutout) error
}

// LiveChecker gates sends on session liveness.
type LiveChecker interface {
	Live() bool
}

// Dispatcher composes and sends shoutouts for one caller in one session.
type Dispatcher struct {
	sender    Sender
	live      LiveChecker
	sessionID uuid.UUID
	senderID  uuid.UUID

	onClear func()
	onError func(error)
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithClearHook fires after every send attempt, success or failure, so the
// compose surface always resets.
func WithClearHook(hook func()) Option {
	return func(d *Dispatcher) {
		d.onClear = hook
	}
}

// WithErrorHook fires with the send error for a dismissible notification.
func WithErrorHook(hook func(error)) Option {
	return func(d *Dispatcher) {
		d.onError = hook
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher bound to one session and sender.
func NewDispatcher(sender Sender, live LiveChecker, sessionID, senderID uuid.UUID, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		live:      live,
		sessionID: sessionID,
		senderID:  senderID,
		now:       time.Now,
		logger:    logger.Get().Named("shoutout"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Send validates and dispatches one shoutout. A fresh identity is minted per
// call, never reused across attempts, so the backend can deduplicate an
// accidental double-submit of the same action.
func (d *Dispatcher) Send(ctx context.Context, targetID uuid.UUID, message string) error {
	const op = "shoutout.send"

	defer func() {
		if d.onClear != nil {
			d.onClear()
		}
	}()

	if !d.live.Live() {
		return fmt.Errorf("%s: %w", op, backend.ErrNotLive)
	}
	if targetID == uuid.Nil {
		return fmt.Errorf("%s: missing target", op)
	}
	if !model.ReactionAllowed(message) {
		return fmt.Errorf("%s: reaction %q not allowed", op, message)
	}

	s := model.Shoutout{
		ID:        uuid.New(),
		SessionID: d.sessionID,
		SenderID:  d.senderID,
		TargetID:  targetID,
		Message:   message,
		CreatedAt: d.now(),
	}

	if err := d.sender.SendShoutout(ctx, s); err != nil {
		metrics.RecordShoutoutError()
		d.logger.Debug(ctx, "shoutout send failed",
			logger.String("target_id", targetID.String()),
			logger.Error(err),
		)
		if d.onError != nil {
			d.onError(err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordShoutoutSent()
	return nil
}
