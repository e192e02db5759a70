// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BatchSize is the tap batch threshold; flush sends floor(pending/batch_size).
	BatchSize int `koanf:"batch_size"`

	// IdleFlushDelayMS is the idle timer restarted on every tap.
	IdleFlushDelayMS int `koanf:"idle_flush_delay_ms"`

	// CounterPollIntervalMS drives the authoritative tap-count re-read.
	CounterPollIntervalMS int `koanf:"counter_poll_interval_ms"`

	// SessionPollIntervalMS drives the session state re-read.
	SessionPollIntervalMS int `koanf:"session_poll_interval_ms"`

	// AchievementDebounceMS delays the achievement check after a flush.
	AchievementDebounceMS int `koanf:"achievement_debounce_ms"`

	// AchievementDisplayMS bounds how long an unlock stays visible.
	AchievementDisplayMS int `koanf:"achievement_display_ms"`

	// ExtensionMinutes is the fixed session extension granted per accept.
	ExtensionMinutes int `koanf:"extension_minutes"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// WSSendBuffer sizes the per-client websocket send buffer.
	WSSendBuffer int `koanf:"ws_send_buffer"`
}

// New creates a Config using provided options. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		BatchSize:             3,
		IdleFlushDelayMS:      5_000,
		CounterPollIntervalMS: 4_000,
		SessionPollIntervalMS: 5_000,
		AchievementDebounceMS: 2_000,
		AchievementDisplayMS:  6_000,
		ExtensionMinutes:      30,
		MaxLeaderboardLimit:   100,
		WSSendBuffer:          16,
	}
	return c
}
