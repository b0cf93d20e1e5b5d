// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package retry wraps a single transport call with bounded exponential
// backoff. The delay schedule comes from cenkalti/backoff's ExponentialBackOff
// (base * 2^attempt, capped, with optional jitter); a Retry-After hint from
// the server takes precedence over the computed delay.
//
// Policies are classed by operation: discovery tolerates more attempts than
// realtime telemetry, trading latency for completeness. Fatal classifications
// (auth rejection, malformed request) return immediately without consuming
// attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/logging"
)

// Class names a logical operation class with its own attempt ceiling.
type Class string

const (
	// ClassDiscovery covers topology and device-list fetches.
	ClassDiscovery Class = "discovery"
	// ClassConfig covers configuration snapshot fetches.
	ClassConfig Class = "config"
	// ClassRealtime covers telemetry fetches; fewer attempts keep the
	// dynamic tier near real time.
	ClassRealtime Class = "realtime"
)

// Policy is the per-class retry behavior. The zero value is not usable;
// construct via NewPolicy.
type Policy struct {
	class         Class
	base          time.Duration
	cap           time.Duration
	randomization float64
	maxAttempts   int

	// wait is swapped in tests to capture computed delays.
	wait func(ctx context.Context, d time.Duration) error
}

// NewPolicy builds a policy for one operation class. base is the first
// delay, capDelay bounds the schedule, randomization is backoff's
// jitter factor (0 disables jitter), maxAttempts is the total number of
// invocations permitted, minimum 1.
func NewPolicy(class Class, base, capDelay time.Duration, randomization float64, maxAttempts int) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{
		class:         class,
		base:          base,
		cap:           capDelay,
		randomization: randomization,
		maxAttempts:   maxAttempts,
		wait:          sleepCtx,
	}
}

// Class returns the operation class this policy serves.
func (p Policy) Class() Class { return p.class }

// Execute invokes op, retrying retryable failures up to the attempt ceiling.
// The last error is surfaced wrapped with %w so its kind is preserved for
// errors.Is / errors.As.
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = p.base
	schedule.MaxInterval = p.cap
	schedule.Multiplier = 2
	schedule.RandomizationFactor = p.randomization
	schedule.MaxElapsedTime = 0 // the attempt ceiling bounds us, not wall time
	schedule.Reset()

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = op(ctx)
		if err == nil {
			return nil
		}

		if !dashboard.IsRetryable(err) {
			return err
		}

		if attempt == p.maxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		if delay > p.cap {
			delay = p.cap
		}
		// An explicit server hint overrides the computed backoff.
		if hint, ok := dashboard.RetryAfterHint(err); ok {
			delay = hint
		}

		logging.Warn().
			Err(err).
			Str("class", string(p.class)).
			Int("attempt", attempt).
			Int("max_attempts", p.maxAttempts).
			Dur("delay", delay).
			Msg("Retrying after transient failure")

		if waitErr := p.wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}

	return fmt.Errorf("retry: %s attempts exhausted (%d): %w", p.class, p.maxAttempts, err)
}

// sleepCtx is a cancellable wait.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
