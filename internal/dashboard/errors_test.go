// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
		notFound  bool
	}{
		{"auth", &AuthError{Status: 401}, false, true, false},
		{"not found", &NotFoundError{Resource: "/networks/N_1"}, false, false, true},
		{"rate limit", &RateLimitError{RetryAfter: time.Second}, true, false, false},
		{"server 503", &ServerError{Status: 503}, true, false, false},
		{"network", &NetworkError{Err: errors.New("connection refused")}, true, false, false},
		{"timeout", &TimeoutError{Err: errors.New("deadline exceeded")}, true, false, false},
		{"plain", errors.New("something else"), false, false, false},
		{"ctx canceled", context.Canceled, false, false, false},
		{"ctx deadline", context.DeadlineExceeded, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err), "IsRetryable")
			assert.Equal(t, tt.fatal, IsFatal(tt.err), "IsFatal")
			assert.Equal(t, tt.notFound, IsNotFound(tt.err), "IsNotFound")
		})
	}
}

func TestErrorClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("fetch devices: %w", &ServerError{Status: 502})
	assert.True(t, IsRetryable(err))

	err = fmt.Errorf("setup: %w", &AuthError{Status: 403})
	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
}

func TestRetryAfterHint(t *testing.T) {
	hint, ok := RetryAfterHint(&RateLimitError{RetryAfter: 7 * time.Second})
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, hint)

	// Hint survives wrapping.
	wrapped := fmt.Errorf("telemetry: %w", &RateLimitError{RetryAfter: 3 * time.Second})
	hint, ok = RetryAfterHint(wrapped)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, hint)

	// No hint without an explicit Retry-After.
	_, ok = RetryAfterHint(&RateLimitError{})
	assert.False(t, ok)
	_, ok = RetryAfterHint(&ServerError{Status: 500})
	assert.False(t, ok)
}
