// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package breaker wraps one logical endpoint (a network hub, or the
// organization-level discovery operations) with a three-state circuit
// breaker built on sony/gobreaker.
//
// The breaker exists because the retry policy alone cannot stop a hub from
// hammering a persistently failing endpoint on every scheduler tick: retries
// bound one call, the breaker bounds the endpoint. Granularity is per hub,
// so one misbehaving partition never opens the circuit for its siblings.
//
// Semantics:
//   - Closed -> Open after FailureThreshold consecutive failures
//   - Open short-circuits every call with ErrCircuitOpen, no network I/O
//   - After Cooldown, exactly one trial call is let through (half-open);
//     success closes the circuit and resets the counter, failure re-opens
//     it and restarts the full cooldown
package breaker

import (
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rknightion/merakimirror/internal/logging"
	"github.com/rknightion/merakimirror/internal/metrics"
)

// ErrCircuitOpen is synthesized locally when the circuit short-circuits a
// call; it never reaches the transport and callers treat it as a degraded,
// non-fatal result.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Settings configures one breaker.
type Settings struct {
	// FailureThreshold is the consecutive-failure count that trips
	// Closed -> Open.
	FailureThreshold uint32

	// Cooldown is how long the circuit stays open before permitting the
	// single half-open trial call.
	Cooldown time.Duration
}

// Breaker guards one logical endpoint.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New creates a breaker named for its endpoint (the hub's partition key).
//
// gobreaker mapping: MaxRequests=1 permits exactly one half-open trial
// regardless of concurrent callers; Interval=0 keeps closed-state counts
// alive so the consecutive-failure semantics are exact (only a success
// resets the counter); Timeout is the cooldown.
func New(name string, s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     s.Cooldown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Do runs fn under the breaker. An open circuit (or a second caller racing
// the half-open trial slot) returns ErrCircuitOpen without invoking fn.
func (b *Breaker) Do(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// Guard runs fn under b with a typed result.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.Do(func() (any, error) { return fn() })
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		// fn returned a nil slice, map or pointer; that is a valid result.
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// State reports the current state as a string for diagnostics.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// ConsecutiveFailures exposes the current consecutive-failure count.
func (b *Breaker) ConsecutiveFailures() uint32 {
	return b.cb.Counts().ConsecutiveFailures
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
