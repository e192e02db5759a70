package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grandstand/cheer/internal/adapters/backend"
	service "github.com/grandstand/cheer/internal/app"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func initLogger(t *testing.T) {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("logger init: %v", err)
	}
}

func newStartedService(t *testing.T) *service.Service {
	t.Helper()
	s := service.New(
		service.WithBatchSize(3),
		service.WithIdleFlushDelay(50*time.Millisecond),
		service.WithCounterPollInterval(time.Hour),
		service.WithSessionPollInterval(time.Hour),
		service.WithAchievementTiming(10*time.Millisecond, 200*time.Millisecond),
	)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestServiceTapFlow(t *testing.T) {
	initLogger(t)

	Convey("Given a started service with a seeded live session", t, func() {
		s := newStartedService(t)
		ctx := context.Background()

		So(s.SessionSnapshot().Session.Live(), ShouldBeTrue)

		Convey("When three taps land", func() {
			for i := 0; i < 3; i++ {
				So(s.RegisterTap(ctx), ShouldBeNil)
			}

			Convey("Then a batch flushes and the buffer empties", func() {
				So(waitFor(func() bool { return s.Counters().Session == 1 }), ShouldBeTrue)
				So(s.Counters().Pending, ShouldEqual, 0)
				So(s.CallerTaps(), ShouldEqual, 1)
			})
		})

		Convey("When a tap lands alone", func() {
			So(s.RegisterTap(ctx), ShouldBeNil)
			So(s.Counters().Pending, ShouldEqual, 1)

			Convey("Then the idle timer leaves the partial batch buffered", func() {
				time.Sleep(120 * time.Millisecond)
				So(s.Counters().Pending, ShouldEqual, 1)
				So(s.Counters().Session, ShouldEqual, 0)
			})
		})
	})
}

func TestServiceShoutouts(t *testing.T) {
	initLogger(t)

	Convey("Given a started service", t, func() {
		s := newStartedService(t)
		ctx := context.Background()

		roster, err := s.Roster(ctx)
		So(err, ShouldBeNil)
		So(len(roster), ShouldBeGreaterThanOrEqualTo, 2)

		Convey("When an allowed reaction goes to a roster member", func() {
			err := s.SendShoutout(ctx, roster[1].UserID, "🔥")

			Convey("Then it is delivered", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the reaction is off the allow-list", func() {
			err := s.SendShoutout(ctx, roster[1].UserID, "hello")

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceSessionEnd(t *testing.T) {
	initLogger(t)

	Convey("Given a started service with confirmed taps", t, func() {
		s := newStartedService(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			So(s.RegisterTap(ctx), ShouldBeNil)
		}
		So(waitFor(func() bool { return s.Counters().Session == 1 }), ShouldBeTrue)

		Convey("When the owner ends the session", func() {
			So(s.EndSession(ctx), ShouldBeNil)

			Convey("Then the recap freezes and further taps are rejected", func() {
				rc, ok := s.Recap()
				So(ok, ShouldBeTrue)
				So(rc.CallerTaps, ShouldEqual, 1)

				err := s.RegisterTap(ctx)
				So(errors.Is(err, backend.ErrNotLive), ShouldBeTrue)
			})
		})

		Convey("When an extension is requested before overrun", func() {
			err := s.ExtendSession(ctx)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, backend.ErrUnauthorized), ShouldBeTrue)
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	initLogger(t)

	Convey("Given a started service", t, func() {
		s := newStartedService(t)

		Convey("When stats are read", func() {
			stats := s.GetStats()

			Convey("Then the projection is populated", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["batch_size"], ShouldEqual, 3)
				So(stats["session_status"], ShouldEqual, string(model.StatusLive))
				So(stats["degraded"], ShouldBeFalse)
			})
		})
	})
}
