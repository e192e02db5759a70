package tap_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/engine/tap"
	"github.com/grandstand/cheer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeBackend struct {
	mu        sync.Mutex
	calls     int64
	sent      []int64
	sessionCt int64
	seasonCt  int64
	err       error
	delay     time.Duration
	readCount int64
	readErr   error
}

func (f *fakeBackend) SendTapBatch(ctx context.Context, sessionID, userID uuid.UUID, count int64) (model.BatchResult, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delay
	err := f.err
	if err == nil {
		f.sent = append(f.sent, count)
		f.sessionCt += count
		f.seasonCt += count
	}
	res := model.BatchResult{SessionTapCount: f.sessionCt, SeasonTotal: f.seasonCt}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.BatchResult{}, ctx.Err()
		}
	}
	if err != nil {
		return model.BatchResult{}, err
	}
	return res, nil
}

func (f *fakeBackend) SessionTapCount(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.readCount, nil
}

func (f *fakeBackend) callCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) sentCounts() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.sent...)
}

type liveFlag struct {
	live atomic.Bool
}

func (l *liveFlag) Live() bool { return l.live.Load() }

func newLive(v bool) *liveFlag {
	l := &liveFlag{}
	l.live.Store(v)
	return l
}

type fakeHealth struct {
	degraded atomic.Bool
	outcomes atomic.Int64
	failures atomic.Int64
}

func (h *fakeHealth) ReportReadOutcome(err error) {
	h.outcomes.Add(1)
	if err != nil {
		h.failures.Add(1)
	}
}

func (h *fakeHealth) Degraded() bool { return h.degraded.Load() }

func initLogger(t *testing.T) {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("logger init: %v", err)
	}
}

func TestRegisterTapGating(t *testing.T) {
	initLogger(t)

	Convey("Given a session that is not live", t, func() {
		fb := &fakeBackend{}
		a := tap.NewAggregator(fb, fb, newLive(false), uuid.New(), uuid.New())

		Convey("When a tap is registered", func() {
			err := a.RegisterTap(context.Background())

			Convey("Then it is a no-op that increments nothing", func() {
				So(errors.Is(err, backend.ErrNotLive), ShouldBeTrue)
				So(a.Counters().Pending, ShouldEqual, 0)
				So(a.Registered(), ShouldEqual, 0)
			})
		})
	})
}

func TestFlushBelowThreshold(t *testing.T) {
	initLogger(t)

	Convey("Given two buffered taps with batch size 3", t, func() {
		fb := &fakeBackend{}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
		)

		So(a.RegisterTap(context.Background()), ShouldBeNil)
		So(a.RegisterTap(context.Background()), ShouldBeNil)

		Convey("When flush is called", func() {
			err := a.Flush(context.Background())

			Convey("Then no network call occurs and the buffer is unchanged", func() {
				So(err, ShouldBeNil)
				So(fb.callCount(), ShouldEqual, 0)
				So(a.Counters().Pending, ShouldEqual, 2)
			})
		})
	})
}

func TestSevenTapScenario(t *testing.T) {
	initLogger(t)

	Convey("Given a supporter tapping seven times in a burst", t, func() {
		fb := &fakeBackend{}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(100*time.Millisecond),
		)

		ctx := context.Background()
		for i := 0; i < 6; i++ {
			So(a.RegisterTap(ctx), ShouldBeNil)
		}
		// threshold flush at tap 6 runs on its own goroutine
		time.Sleep(30 * time.Millisecond)
		So(a.RegisterTap(ctx), ShouldBeNil)

		Convey("Then the threshold flush sent floor(6/3)=2 leaving the 7th buffered", func() {
			So(fb.sentCounts(), ShouldResemble, []int64{2})
			So(a.Counters().Pending, ShouldEqual, 1)
		})

		Convey("When the idle timer fires afterwards", func() {
			time.Sleep(200 * time.Millisecond)

			Convey("Then the idle flush is a no-op and the remainder stays", func() {
				So(fb.callCount(), ShouldEqual, 1)
				So(a.Counters().Pending, ShouldEqual, 1)
			})
		})
	})
}

func TestFlushFailurePreservesBuffer(t *testing.T) {
	initLogger(t)

	Convey("Given a backend that rejects batches", t, func() {
		fb := &fakeBackend{err: backend.ErrTransient}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
		)

		ctx := context.Background()
		for i := 0; i < 4; i++ {
			So(a.RegisterTap(ctx), ShouldBeNil)
		}
		time.Sleep(30 * time.Millisecond)

		Convey("Then the failed flush left the buffer intact", func() {
			So(a.Counters().Pending, ShouldEqual, 4)

			Convey("And once the backend recovers the whole backlog goes out", func() {
				fb.mu.Lock()
				fb.err = nil
				fb.mu.Unlock()

				So(a.Flush(ctx), ShouldBeNil)
				So(fb.sentCounts(), ShouldResemble, []int64{1})
				So(a.Counters().Pending, ShouldEqual, 1)
			})
		})
	})
}

func TestRateLimitedFlushWarns(t *testing.T) {
	initLogger(t)

	Convey("Given a backend that rate-limits", t, func() {
		fb := &fakeBackend{err: backend.ErrRateLimited}
		var warnings []string
		var mu sync.Mutex
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
			tap.WithWarningHook(func(msg string) {
				mu.Lock()
				warnings = append(warnings, msg)
				mu.Unlock()
			}),
		)

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			So(a.RegisterTap(ctx), ShouldBeNil)
		}
		time.Sleep(30 * time.Millisecond)

		Convey("Then a one-shot warning surfaced and the buffer survived", func() {
			mu.Lock()
			n := len(warnings)
			mu.Unlock()
			So(n, ShouldEqual, 1)
			So(a.Counters().Pending, ShouldEqual, 3)
		})
	})
}

func TestConcurrentFlushSingleCall(t *testing.T) {
	initLogger(t)

	Convey("Given a slow backend and a full batch", t, func() {
		fb := &fakeBackend{delay: 50 * time.Millisecond}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
		)

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			So(a.RegisterTap(ctx), ShouldBeNil)
		}
		time.Sleep(10 * time.Millisecond) // let the threshold flush take the guard

		Convey("When two more flushes race the in-flight one", func() {
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = a.Flush(ctx)
				}()
			}
			wg.Wait()
			time.Sleep(100 * time.Millisecond)

			Convey("Then at most one network call was made", func() {
				So(fb.callCount(), ShouldEqual, 1)
				So(a.Counters().Pending, ShouldEqual, 0)
			})
		})
	})
}

func TestRemainderInvariant(t *testing.T) {
	initLogger(t)

	Convey("Given an arbitrary tap sequence with interleaved flushes", t, func() {
		fb := &fakeBackend{}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
		)

		ctx := context.Background()
		taps := []int{1, 4, 2, 7, 3}
		for _, n := range taps {
			for i := 0; i < n; i++ {
				So(a.RegisterTap(ctx), ShouldBeNil)
			}
			time.Sleep(20 * time.Millisecond) // drain any threshold flush
			So(a.Flush(ctx), ShouldBeNil)
		}
		time.Sleep(20 * time.Millisecond)

		Convey("Then taps are only deferred, never created or destroyed", func() {
			var flushed int64
			for _, c := range fb.sentCounts() {
				flushed += c * 3
			}
			So(flushed+a.Counters().Pending, ShouldEqual, a.Registered())
			So(a.Counters().Pending, ShouldBeLessThan, 3)
		})
	})
}

func TestReconcilePollAndCelebration(t *testing.T) {
	initLogger(t)

	Convey("Given other supporters tapping against the same session", t, func() {
		fb := &fakeBackend{readCount: 10}
		health := &fakeHealth{}
		var celebrated atomic.Int64
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithPollInterval(20*time.Millisecond),
			tap.WithHealthMonitor(health),
			tap.WithCelebrationHook(func(delta int64) { celebrated.Add(delta) }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		a.Start(ctx)
		defer a.Stop()

		Convey("When the poll observes a higher authoritative count", func() {
			time.Sleep(50 * time.Millisecond)

			Convey("Then the display is overwritten and the arrival celebrated", func() {
				So(a.Counters().Session, ShouldEqual, 10)
				So(celebrated.Load(), ShouldBeGreaterThan, 0)
				So(health.outcomes.Load(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the link is degraded", func() {
			health.degraded.Store(true)
			fb.mu.Lock()
			fb.readCount = 50
			fb.mu.Unlock()
			before := celebrated.Load()
			time.Sleep(50 * time.Millisecond)

			Convey("Then the display still reconciles but celebration is suppressed", func() {
				So(a.Counters().Session, ShouldEqual, 50)
				So(celebrated.Load(), ShouldEqual, before)
			})
		})
	})
}

func TestReconcileReportsFailures(t *testing.T) {
	initLogger(t)

	Convey("Given a backend whose reads fail", t, func() {
		fb := &fakeBackend{readErr: backend.ErrTransient}
		health := &fakeHealth{}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithPollInterval(15*time.Millisecond),
			tap.WithHealthMonitor(health),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		a.Start(ctx)
		defer a.Stop()

		Convey("When polls run", func() {
			time.Sleep(60 * time.Millisecond)

			Convey("Then failures reach the health monitor and the display is untouched", func() {
				So(health.failures.Load(), ShouldBeGreaterThan, 0)
				So(a.Counters().Session, ShouldEqual, 0)
			})
		})
	})
}

func TestStopFlushesWholeBatches(t *testing.T) {
	initLogger(t)

	Convey("Given buffered whole batches at shutdown", t, func() {
		fb := &fakeBackend{}
		a := tap.NewAggregator(fb, fb, newLive(true), uuid.New(), uuid.New(),
			tap.WithBatchSize(3),
			tap.WithIdleFlushDelay(time.Hour),
			tap.WithPollInterval(time.Hour),
		)

		ctx := context.Background()
		a.Start(ctx)
		So(a.RegisterTap(ctx), ShouldBeNil)
		So(a.RegisterTap(ctx), ShouldBeNil)
		So(a.RegisterTap(ctx), ShouldBeNil)
		So(a.RegisterTap(ctx), ShouldBeNil)
		time.Sleep(30 * time.Millisecond)

		Convey("When the aggregator stops", func() {
			a.Stop()

			Convey("Then whole batches were flushed and only the remainder abandoned", func() {
				So(a.Counters().Pending, ShouldEqual, 1)
			})
		})
	})
}
