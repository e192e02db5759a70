// Package metrics provides Prometheus metrics for the cheer engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the cheer engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Tap path - what the engine exists for
	tapsRegistered  prometheus.Counter
	tapsRejected    prometheus.Counter
	flushes         prometheus.Counter
	flushErrors     prometheus.Counter
	flushRateLimits prometheus.Counter
	flushLatency    prometheus.Histogram
	pendingBuffer   prometheus.Gauge
	sessionTapCount prometheus.Gauge
	seasonTotal     prometheus.Gauge

	// Session lifecycle
	sessionState      *prometheus.GaugeVec
	extensionPrompts  prometheus.Counter
	sessionExtensions prometheus.Counter

	// Side effects
	shoutoutsSent      prometheus.Counter
	shoutoutErrors     prometheus.Counter
	achievementChecks  prometheus.Counter
	achievementUnlocks prometheus.Counter

	// Connectivity and transport
	connectivityDegraded prometheus.Gauge
	wsClients            prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cheer",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is one long list by nature
	auto := promauto.With(m.registry)

	m.tapsRegistered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "taps_registered_total",
		Help:      "Total number of taps accepted into the local buffer",
	})

	m.tapsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "taps_rejected_total",
		Help:      "Total number of taps rejected because no session was live",
	})

	m.flushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flushes_total",
		Help:      "Total number of successful batch flushes to the backend",
	})

	m.flushErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_errors_total",
		Help:      "Total number of failed batch flushes (buffer preserved)",
	})

	m.flushRateLimits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_rate_limited_total",
		Help:      "Total number of flushes rejected by the backend rate limiter",
	})

	m.flushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_latency_milliseconds",
		Help:      "Histogram of batch flush round-trip latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.pendingBuffer = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_buffer_taps",
		Help:      "Taps buffered locally and not yet confirmed by the backend",
	})

	m.sessionTapCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_tap_count",
		Help:      "Last authoritative session tap count read from the backend",
	})

	m.seasonTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "season_total",
		Help:      "Last authoritative season tap total for the local supporter",
	})

	m.sessionState = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "session_state",
			Help:      "Current session state as a one-hot gauge by state label",
		},
		[]string{"state"},
	)

	m.extensionPrompts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "extension_prompts_total",
		Help:      "Total number of overrun prompts shown for live sessions",
	})

	m.sessionExtensions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_extensions_total",
		Help:      "Total number of accepted session extensions",
	})

	m.shoutoutsSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shoutouts_sent_total",
		Help:      "Total number of shoutouts delivered to the backend",
	})

	m.shoutoutErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shoutout_errors_total",
		Help:      "Total number of shoutout sends that failed (not retried)",
	})

	m.achievementChecks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "achievement_checks_total",
		Help:      "Total number of achievement evaluations requested",
	})

	m.achievementUnlocks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "achievement_unlocks_total",
		Help:      "Total number of newly unlocked achievements surfaced",
	})

	m.connectivityDegraded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connectivity_degraded",
		Help:      "1 when the device is offline or the last session read failed",
	})

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_clients",
		Help:      "Current number of connected websocket clients",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordTapRegistered increments the accepted-tap counter.
func RecordTapRegistered() {
	globalManager.tapsRegistered.Inc()
}

// RecordTapRejected increments the rejected-tap counter.
func RecordTapRejected() {
	globalManager.tapsRejected.Inc()
}

// RecordFlush increments the successful-flush counter.
func RecordFlush() {
	globalManager.flushes.Inc()
}

// RecordFlushError increments the failed-flush counter.
func RecordFlushError() {
	globalManager.flushErrors.Inc()
}

// RecordFlushRateLimited increments the rate-limited-flush counter.
func RecordFlushRateLimited() {
	globalManager.flushRateLimits.Inc()
}

// RecordFlushLatency records flush round-trip latency in milliseconds.
func RecordFlushLatency(latencyMs float64) {
	globalManager.flushLatency.Observe(latencyMs)
}

// UpdatePendingBuffer sets the local pending buffer gauge.
func UpdatePendingBuffer(taps int64) {
	globalManager.pendingBuffer.Set(float64(taps))
}

// UpdateSessionTapCount sets the authoritative session counter gauge.
func UpdateSessionTapCount(count int64) {
	globalManager.sessionTapCount.Set(float64(count))
}

// UpdateSeasonTotal sets the supporter season total gauge.
func UpdateSeasonTotal(count int64) {
	globalManager.seasonTotal.Set(float64(count))
}

// UpdateSessionState sets the one-hot session state gauge.
func UpdateSessionState(state string) {
	for _, s := range []string{"scheduled", "live", "extended", "ended"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		globalManager.sessionState.WithLabelValues(s).Set(v)
	}
}

// RecordExtensionPrompt increments the overrun prompt counter.
func RecordExtensionPrompt() {
	globalManager.extensionPrompts.Inc()
}

// RecordSessionExtension increments the accepted extension counter.
func RecordSessionExtension() {
	globalManager.sessionExtensions.Inc()
}

// RecordShoutoutSent increments the delivered shoutout counter.
func RecordShoutoutSent() {
	globalManager.shoutoutsSent.Inc()
}

// RecordShoutoutError increments the failed shoutout counter.
func RecordShoutoutError() {
	globalManager.shoutoutErrors.Inc()
}

// RecordAchievementCheck increments the achievement evaluation counter.
func RecordAchievementCheck() {
	globalManager.achievementChecks.Inc()
}

// RecordAchievementUnlock increments the surfaced unlock counter.
func RecordAchievementUnlock() {
	globalManager.achievementUnlocks.Inc()
}

// UpdateConnectivityDegraded sets the connectivity gauge.
func UpdateConnectivityDegraded(degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	globalManager.connectivityDegraded.Set(v)
}

// UpdateWSClients sets the connected websocket client gauge.
func UpdateWSClients(count int) {
	globalManager.wsClients.Set(float64(count))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
