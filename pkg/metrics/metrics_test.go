package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			bucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			enabledOpt := WithMetricsEnabled(true)
			refreshOpt := WithRefreshInterval(5 * time.Second)
			labelsOpt := WithCustomLabels(map[string]string{"env": "test"})
			prefixOpt := WithMetricPrefix("test-prefix")

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(bucketsOpt, ShouldNotBeNil)
				So(enabledOpt, ShouldNotBeNil)
				So(refreshOpt, ShouldNotBeNil)
				So(labelsOpt, ShouldNotBeNil)
				So(prefixOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording tap path metrics", func() {
			So(func() {
				RecordTapRegistered()
				RecordTapRejected()
				RecordFlush()
				RecordFlushError()
				RecordFlushRateLimited()
				RecordFlushLatency(12.5)
				UpdatePendingBuffer(2)
				UpdateSessionTapCount(142)
				UpdateSeasonTotal(1000)
			}, ShouldNotPanic)
		})

		Convey("When recording session lifecycle metrics", func() {
			So(func() {
				UpdateSessionState("live")
				UpdateSessionState("ended")
				RecordExtensionPrompt()
				RecordSessionExtension()
			}, ShouldNotPanic)
		})

		Convey("When recording side effect metrics", func() {
			So(func() {
				RecordShoutoutSent()
				RecordShoutoutError()
				RecordAchievementCheck()
				RecordAchievementUnlock()
			}, ShouldNotPanic)
		})

		Convey("When recording connectivity and transport metrics", func() {
			So(func() {
				UpdateConnectivityDegraded(true)
				UpdateConnectivityDegraded(false)
				UpdateWSClients(3)
				RecordHTTPRequest("taps", "POST", "202")
				RecordHTTPRequestDuration("taps", "POST", "202", 3.2)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		Convey("When fetching it", func() {
			registry := GetRegistry()

			Convey("Then it should not be nil", func() {
				So(registry, ShouldNotBeNil)
			})
		})
	})
}
