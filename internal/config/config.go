// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package config loads and validates the mirror's configuration with
// layered sources (highest priority wins): environment variables, an
// optional YAML config file, then built-in defaults.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Dashboard DashboardConfig `koanf:"dashboard"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Retry     RetryConfig     `koanf:"retry"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Diag      DiagConfig      `koanf:"diag"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DashboardConfig describes the upstream cloud management API.
type DashboardConfig struct {
	// BaseURL is the API root, e.g. https://api.meraki.com
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates every request. Required.
	APIKey string `koanf:"api_key"`

	// OrganizationID selects the tenant to mirror. Required.
	OrganizationID string `koanf:"organization_id"`

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration `koanf:"timeout"`
}

// RateLimitConfig is the shared per-organization call budget. One limiter
// serves every hub; there is never a per-hub budget.
type RateLimitConfig struct {
	// PerSecond is the sustained call rate.
	PerSecond float64 `koanf:"per_second"`

	// Burst is the bucket depth.
	Burst int `koanf:"burst"`

	// MaxBatchSize is the transport's maximum serial cardinality for one
	// telemetry call; larger requests are split into this many per group.
	MaxBatchSize int `koanf:"max_batch_size"`
}

// RefreshConfig holds the per-tier scheduler intervals and cache TTLs.
type RefreshConfig struct {
	// StaticInterval drives device/topology discovery.
	StaticInterval time.Duration `koanf:"static_interval"`

	// SemiStaticInterval drives configuration snapshots.
	SemiStaticInterval time.Duration `koanf:"semi_static_interval"`

	// DynamicInterval drives telemetry. Kept short; telemetry is never
	// served from cache.
	DynamicInterval time.Duration `koanf:"dynamic_interval"`

	// ConfigTTL is the response-cache TTL for configuration snapshots.
	ConfigTTL time.Duration `koanf:"config_ttl"`
}

// RetryConfig parameterizes the per-class retry policies.
type RetryConfig struct {
	// Base is the first backoff delay; subsequent delays double.
	Base time.Duration `koanf:"base"`

	// Cap bounds any single delay, including jittered ones.
	Cap time.Duration `koanf:"cap"`

	// Randomization is the jitter factor (0 disables jitter, 0.5 is
	// backoff's conventional default).
	Randomization float64 `koanf:"randomization"`

	// Attempt ceilings per operation class. Realtime stays low so the
	// dynamic tier does not fall behind its own interval.
	DiscoveryAttempts int `koanf:"discovery_attempts"`
	ConfigAttempts    int `koanf:"config_attempts"`
	RealtimeAttempts  int `koanf:"realtime_attempts"`
}

// BreakerConfig parameterizes the per-hub circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a
	// hub's circuit.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// Cooldown is how long an open circuit waits before the half-open
	// trial call.
	Cooldown time.Duration `koanf:"cooldown"`
}

// DiagConfig configures the diagnostics HTTP server (/healthz, /metrics,
// /api/v1/diagnostics).
type DiagConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			BaseURL: "https://api.meraki.com",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			PerSecond:    10,
			Burst:        10,
			MaxBatchSize: 100,
		},
		Refresh: RefreshConfig{
			StaticInterval:     time.Hour,
			SemiStaticInterval: 30 * time.Minute,
			DynamicInterval:    5 * time.Minute,
			ConfigTTL:          30 * time.Minute,
		},
		Retry: RetryConfig{
			Base:              time.Second,
			Cap:               30 * time.Second,
			Randomization:     0.5,
			DiscoveryAttempts: 5,
			ConfigAttempts:    3,
			RealtimeAttempts:  2,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         2 * time.Minute,
		},
		Diag: DiagConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
