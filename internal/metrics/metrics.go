// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package metrics registers the Prometheus instrumentation for the mirror:
// dashboard call outcomes and latency, circuit breaker state, cache
// efficiency, rate-limiter pressure, and refresh-tier freshness. Everything
// is registered via promauto and served by the diagnostics HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dashboard API call metrics.

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_api_call_duration_seconds",
			Help:    "Duration of dashboard API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"hub", "operation"},
	)

	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_api_calls_total",
			Help: "Total dashboard API calls by outcome",
		},
		[]string{"hub", "operation", "result"}, // result: success, failure, short_circuited
	)

	// Circuit breaker metrics.

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by outcome",
		},
		[]string{"breaker", "result"}, // result: success, failure, rejected
	)

	// Response cache metrics.

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_cache_requests_total",
			Help: "Response cache lookups by namespace and outcome",
		},
		[]string{"namespace", "result"}, // result: hit, miss
	)

	// Rate limiter metrics.

	RateLimiterWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate limiter permit",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"limiter"},
	)

	// Refresh scheduler metrics.

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_refresh_runs_total",
			Help: "Per-tier refresh executions by outcome",
		},
		[]string{"tier", "result"}, // result: success, failure
	)

	RefreshLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_refresh_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful refresh per tier",
		},
		[]string{"tier"},
	)

	// Hub lifecycle metrics.

	HubsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirror_network_hubs_active",
			Help: "Number of network hubs currently owned by the organization hub",
		},
	)

	DevicesMirrored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_devices_total",
			Help: "Devices currently mirrored per hub",
		},
		[]string{"hub"},
	)
)
