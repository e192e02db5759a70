// Package connectivity tracks device reachability and the health of the most
// recent backend read, producing a single degraded signal.
//
// Device-level online is necessary but not sufficient: a device can report
// Wi-Fi while the backend is unreachable, so the monitor corroborates with a
// real request outcome.
package connectivity

import (
	"sync"

	"github.com/grandstand/cheer/pkg/metrics"
)

// Monitor computes degraded = !deviceOnline || lastReadFailed.
type Monitor struct {
	mu             sync.RWMutex
	deviceOnline   bool
	lastReadFailed bool
	onChange       func(degraded bool)
}

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithChangeHook registers a callback fired whenever the degraded signal
// flips. The callback runs inline with the state change.
func WithChangeHook(hook func(degraded bool)) Option {
	return func(m *Monitor) {
		m.onChange = hook
	}
}

// NewMonitor creates a monitor that assumes the device starts online with no
// failed reads.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		deviceOnline: true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetDeviceOnline records a platform connectivity change notification.
func (m *Monitor) SetDeviceOnline(online bool) {
	m.mu.Lock()
	before := m.degradedLocked()
	m.deviceOnline = online
	after := m.degradedLocked()
	m.mu.Unlock()

	m.publish(before, after)
}

// ReportReadOutcome records the outcome of a periodic session read.
// A nil error marks the backend healthy again.
func (m *Monitor) ReportReadOutcome(err error) {
	m.mu.Lock()
	before := m.degradedLocked()
	m.lastReadFailed = err != nil
	after := m.degradedLocked()
	m.mu.Unlock()

	m.publish(before, after)
}

// Degraded reports whether the UI should suppress celebratory feedback and
// show the low-connectivity indicator.
func (m *Monitor) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degradedLocked()
}

func (m *Monitor) degradedLocked() bool {
	return !m.deviceOnline || m.lastReadFailed
}

func (m *Monitor) publish(before, after bool) {
	if before == after {
		return
	}
	metrics.UpdateConnectivityDegraded(after)
	if m.onChange != nil {
		m.onChange(after)
	}
}
