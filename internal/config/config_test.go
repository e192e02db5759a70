package config_test

import (
	"context"
	"testing"

	"github.com/grandstand/cheer/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.BatchSize, convey.ShouldEqual, 3)
			convey.So(cfg.IdleFlushDelayMS, convey.ShouldEqual, 5_000)
			convey.So(cfg.CounterPollIntervalMS, convey.ShouldEqual, 4_000)
			convey.So(cfg.SessionPollIntervalMS, convey.ShouldEqual, 5_000)
			convey.So(cfg.AchievementDebounceMS, convey.ShouldEqual, 2_000)
			convey.So(cfg.AchievementDisplayMS, convey.ShouldEqual, 6_000)
			convey.So(cfg.ExtensionMinutes, convey.ShouldEqual, 30)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
		})
	})
}
