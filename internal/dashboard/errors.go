// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Error taxonomy for the transport boundary. The retry layer classifies
// every call outcome through these types:
//
//   - AuthError, NotFoundError      -> fatal, never retried
//   - RateLimitError, ServerError,
//     NetworkError, TimeoutError    -> retryable up to the class ceiling
//
// NotFound is frequently absorbed by the caller as a valid empty result
// (a device removed from the organization is not a failure).

// AuthError indicates the API rejected the credentials (401/403).
// Process-level reconfiguration is required; retrying cannot help.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("dashboard: authentication rejected (HTTP %d)", e.Status)
}

// NotFoundError indicates the requested resource does not exist (404).
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dashboard: %s not found", e.Resource)
}

// RateLimitError indicates HTTP 429. RetryAfter carries the server's
// Retry-After hint when present, zero otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("dashboard: rate limited (retry after %s)", e.RetryAfter)
	}
	return "dashboard: rate limited"
}

// ServerError indicates a 5xx response.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("dashboard: server error (HTTP %d)", e.Status)
}

// NetworkError wraps a transport-level failure (DNS, connection refused).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("dashboard: network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError wraps a request that exceeded the transport deadline.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("dashboard: timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error belongs to the retryable-bounded
// class. Context cancellation is never retryable: the caller is going away.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var (
		rle *RateLimitError
		se  *ServerError
		ne  *NetworkError
		te  *TimeoutError
	)
	return errors.As(err, &rle) || errors.As(err, &se) || errors.As(err, &ne) || errors.As(err, &te)
}

// IsFatal reports whether the error invalidates the whole integration
// rather than a single call.
func IsFatal(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether the error is an absent-resource result.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// RetryAfterHint extracts an explicit server backoff hint, if the error
// carries one. The retry layer gives the hint precedence over its own
// computed delay.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}

// wrapTransportError converts a net/http client error into the taxonomy.
func wrapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}
