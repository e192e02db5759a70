package recap_test

import (
	"testing"
	"time"

	"github.com/grandstand/cheer/internal/domain/recap"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	Convey("Given a session start time", t, func() {
		start := time.Date(2026, 5, 9, 14, 0, 0, 0, time.UTC)

		Convey("When the session ran 95 minutes", func() {
			r := recap.Compute(start, start.Add(95*time.Minute), 500, 80)

			Convey("Then the duration renders hours and minutes", func() {
				So(r.DurationLabel, ShouldEqual, "1h 35m")
				So(r.TotalTaps, ShouldEqual, 500)
				So(r.CallerTaps, ShouldEqual, 80)
			})
		})

		Convey("When the session ran 40 minutes", func() {
			r := recap.Compute(start, start.Add(40*time.Minute), 10, 3)

			Convey("Then the duration renders minutes only", func() {
				So(r.DurationLabel, ShouldEqual, "40m")
			})
		})

		Convey("When the session ran 1 hour 12 minutes with known counters", func() {
			r := recap.Compute(start, start.Add(72*time.Minute), 142, 37)

			Convey("Then the recap matches the final display", func() {
				So(r.TotalTaps, ShouldEqual, 142)
				So(r.CallerTaps, ShouldEqual, 37)
				So(r.DurationLabel, ShouldEqual, "1h 12m")
			})
		})

		Convey("When the duration is sub-minute or negative", func() {
			So(recap.Compute(start, start.Add(30*time.Second), 0, 0).DurationLabel, ShouldEqual, "0m")
			So(recap.Compute(start, start.Add(-time.Minute), 0, 0).DurationLabel, ShouldEqual, "0m")
		})

		Convey("When called twice with identical inputs", func() {
			a := recap.Compute(start, start.Add(61*time.Minute), 9, 4)
			b := recap.Compute(start, start.Add(61*time.Minute), 9, 4)

			Convey("Then the outputs are identical", func() {
				So(a, ShouldResemble, b)
				So(a.DurationLabel, ShouldEqual, "1h 1m")
			})
		})
	})
}
