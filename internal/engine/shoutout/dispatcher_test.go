package shoutout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/adapters/backend"
	"github.com/grandstand/cheer/internal/domain/model"
	"github.com/grandstand/cheer/internal/engine/shoutout"
	"github.com/grandstand/cheer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []model.Shoutout
	err  error
}

func (f *fakeSender) SendShoutout(ctx context.Context, s model.Shoutout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeSender) shoutouts() []model.Shoutout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Shoutout(nil), f.sent...)
}

type liveFlag bool

func (l liveFlag) Live() bool { return bool(l) }

func initLogger(t *testing.T) {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("logger init: %v", err)
	}
}

func TestSendHappyPath(t *testing.T) {
	initLogger(t)

	Convey("Given a live session and a roster target", t, func() {
		fs := &fakeSender{}
		target := uuid.New()
		var cleared int
		d := shoutout.NewDispatcher(fs, liveFlag(true), uuid.New(), uuid.New(),
			shoutout.WithClearHook(func() { cleared++ }),
		)

		Convey("When an allowed reaction is sent", func() {
			err := d.Send(context.Background(), target, "🎉")

			Convey("Then exactly one shoutout goes out and the composer clears", func() {
				So(err, ShouldBeNil)
				sent := fs.shoutouts()
				So(sent, ShouldHaveLength, 1)
				So(sent[0].TargetID, ShouldEqual, target)
				So(sent[0].Message, ShouldEqual, "🎉")
				So(sent[0].ID, ShouldNotEqual, uuid.Nil)
				So(cleared, ShouldEqual, 1)
			})
		})

		Convey("When two sends are made back to back", func() {
			So(d.Send(context.Background(), target, "🔥"), ShouldBeNil)
			So(d.Send(context.Background(), target, "🔥"), ShouldBeNil)

			Convey("Then each carries its own identity", func() {
				sent := fs.shoutouts()
				So(sent, ShouldHaveLength, 2)
				So(sent[0].ID, ShouldNotEqual, sent[1].ID)
			})
		})
	})
}

func TestSendValidation(t *testing.T) {
	initLogger(t)

	Convey("Given a live session", t, func() {
		fs := &fakeSender{}
		var cleared int
		d := shoutout.NewDispatcher(fs, liveFlag(true), uuid.New(), uuid.New(),
			shoutout.WithClearHook(func() { cleared++ }),
		)

		Convey("When the reaction is off the allow-list", func() {
			err := d.Send(context.Background(), uuid.New(), "whatever")

			Convey("Then nothing is sent but the composer still clears", func() {
				So(err, ShouldNotBeNil)
				So(fs.shoutouts(), ShouldBeEmpty)
				So(cleared, ShouldEqual, 1)
			})
		})

		Convey("When the target is missing", func() {
			err := d.Send(context.Background(), uuid.Nil, "🎉")

			Convey("Then nothing is sent", func() {
				So(err, ShouldNotBeNil)
				So(fs.shoutouts(), ShouldBeEmpty)
			})
		})
	})
}

func TestSendGatingAndFailure(t *testing.T) {
	initLogger(t)

	Convey("Given a dispatcher", t, func() {
		target := uuid.New()

		Convey("When the session is not live", func() {
			fs := &fakeSender{}
			d := shoutout.NewDispatcher(fs, liveFlag(false), uuid.New(), uuid.New())
			err := d.Send(context.Background(), target, "🎉")

			Convey("Then the send is rejected before the network", func() {
				So(errors.Is(err, backend.ErrNotLive), ShouldBeTrue)
				So(fs.shoutouts(), ShouldBeEmpty)
			})
		})

		Convey("When delivery fails", func() {
			fs := &fakeSender{err: backend.ErrTransient}
			var notified []error
			var cleared int
			d := shoutout.NewDispatcher(fs, liveFlag(true), uuid.New(), uuid.New(),
				shoutout.WithErrorHook(func(err error) { notified = append(notified, err) }),
				shoutout.WithClearHook(func() { cleared++ }),
			)
			err := d.Send(context.Background(), target, "👏")

			Convey("Then the error surfaces once with no retry", func() {
				So(errors.Is(err, backend.ErrTransient), ShouldBeTrue)
				So(notified, ShouldHaveLength, 1)
				So(cleared, ShouldEqual, 1)
				So(fs.shoutouts(), ShouldBeEmpty)
			})
		})
	})
}
