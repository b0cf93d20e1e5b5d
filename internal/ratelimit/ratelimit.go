// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package ratelimit provides the single shared gate that all hubs of one
// organization pass through before touching the transport, plus the batching
// helper that packs telemetry serials into as few calls as the transport
// allows.
//
// There is exactly one Limiter per organization. It is owned by the
// organization hub and handed to every network hub; no hub may construct its
// own. x/time/rate's Wait queues waiters fairly, so concurrent hubs on the
// same tick cannot starve each other.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/rknightion/merakimirror/internal/metrics"
)

// Limiter is a token-bucket gate over the organization's shared call budget.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a limiter allowing perSecond sustained calls with the given
// burst. A zero or negative perSecond yields an unlimited gate, which is only
// sensible in tests.
func New(name string, perSecond float64, burst int) *Limiter {
	lim := rate.Inf
	if perSecond > 0 {
		lim = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(lim, burst),
		name:    name,
	}
}

// Acquire blocks until a call permit is available or ctx is done. The wait
// duration is recorded so a saturated budget is visible in diagnostics.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.RateLimiterWaitSeconds.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
	return nil
}

// Batch partitions ids into groups of at most maxGroupSize, preserving order,
// so a caller issues ceil(n/maxGroupSize) calls instead of n. A non-positive
// maxGroupSize returns a single group.
func Batch(ids []string, maxGroupSize int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if maxGroupSize <= 0 || maxGroupSize >= len(ids) {
		return [][]string{ids}
	}

	groups := make([][]string, 0, (len(ids)+maxGroupSize-1)/maxGroupSize)
	for start := 0; start < len(ids); start += maxGroupSize {
		end := start + maxGroupSize
		if end > len(ids) {
			end = len(ids)
		}
		groups = append(groups, ids[start:end])
	}
	return groups
}
