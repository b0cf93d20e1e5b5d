// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknightion/merakimirror/internal/dashboard"
)

// capturePolicy returns a policy whose waits are recorded instead of slept.
func capturePolicy(class Class, base, capDelay time.Duration, maxAttempts int, delays *[]time.Duration) Policy {
	p := NewPolicy(class, base, capDelay, 0, maxAttempts)
	p.wait = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestBackoffGrowthBounded(t *testing.T) {
	// base=1s, cap=30s, no jitter: delays must be 1,2,4,8,16,30 - the last
	// doubling clamps to the cap and never exceeds it.
	var delays []time.Duration
	p := capturePolicy(ClassDiscovery, time.Second, 30*time.Second, 7, &delays)

	err := p.Execute(context.Background(), func(context.Context) error {
		return &dashboard.ServerError{Status: 503}
	})
	require.Error(t, err)

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 16 * time.Second, 30 * time.Second,
	}
	assert.Equal(t, want, delays)
}

func TestSuccessStopsRetrying(t *testing.T) {
	var delays []time.Duration
	p := capturePolicy(ClassConfig, time.Millisecond, time.Second, 5, &delays)

	calls := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &dashboard.NetworkError{Err: errors.New("flaky")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestFatalErrorBypassesRetry(t *testing.T) {
	var delays []time.Duration
	p := capturePolicy(ClassDiscovery, time.Millisecond, time.Second, 5, &delays)

	calls := 0
	authErr := &dashboard.AuthError{Status: 401}
	err := p.Execute(context.Background(), func(context.Context) error {
		calls++
		return authErr
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "auth rejection must not consume retry attempts")
	assert.Empty(t, delays)
	assert.True(t, dashboard.IsFatal(err))
}

func TestAttemptCeilingPerClass(t *testing.T) {
	tests := []struct {
		class    Class
		attempts int
	}{
		{ClassDiscovery, 5},
		{ClassConfig, 3},
		{ClassRealtime, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			var delays []time.Duration
			p := capturePolicy(tt.class, time.Millisecond, time.Second, tt.attempts, &delays)

			calls := 0
			err := p.Execute(context.Background(), func(context.Context) error {
				calls++
				return &dashboard.ServerError{Status: 502}
			})
			require.Error(t, err)
			assert.Equal(t, tt.attempts, calls)
			assert.Len(t, delays, tt.attempts-1, "no wait after the final attempt")
		})
	}
}

func TestErrorKindSurvivesExhaustion(t *testing.T) {
	var delays []time.Duration
	p := capturePolicy(ClassRealtime, time.Millisecond, time.Second, 2, &delays)

	err := p.Execute(context.Background(), func(context.Context) error {
		return &dashboard.ServerError{Status: 503}
	})
	require.Error(t, err)

	var se *dashboard.ServerError
	require.True(t, errors.As(err, &se), "wrapped error must keep its kind")
	assert.Equal(t, 503, se.Status)
}

func TestRetryAfterHintOverridesBackoff(t *testing.T) {
	var delays []time.Duration
	p := capturePolicy(ClassConfig, time.Second, time.Minute, 3, &delays)

	calls := 0
	err := p.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &dashboard.RateLimitError{RetryAfter: 9 * time.Second}
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 9*time.Second, delays[0], "server hint wins over the computed 1s")
}

func TestContextCancellationStopsRetry(t *testing.T) {
	p := NewPolicy(ClassDiscovery, time.Millisecond, time.Second, 0, 5)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return &dashboard.ServerError{Status: 500}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCancelledContextNeverInvokesOp(t *testing.T) {
	p := NewPolicy(ClassRealtime, time.Millisecond, time.Second, 0, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Execute(ctx, func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
