// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rknightion/merakimirror/internal/logging"
	"github.com/rknightion/merakimirror/internal/metrics"
)

// TickFunc runs one refresh pass for a tier.
type TickFunc func(ctx context.Context, tier RefreshTier) error

// Scheduler drives the three refresh tiers on independent timers. Each
// tier's timer is re-armed only after its tick completes, so a slow pass
// delays the next one instead of overlapping it. Ticks for different tiers
// run concurrently.
type Scheduler struct {
	intervals map[RefreshTier]time.Duration
	tick      TickFunc

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler builds a scheduler over the given per-tier intervals. Tiers
// with a non-positive interval are not scheduled.
func NewScheduler(intervals map[RefreshTier]time.Duration, tick TickFunc) *Scheduler {
	return &Scheduler{intervals: intervals, tick: tick}
}

// Start launches one goroutine per scheduled tier. Idempotent while
// running. The first tick of each tier fires after a full interval; callers
// wanting immediate data use ForceRefresh.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	for tier, interval := range s.intervals {
		if interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, tier, interval)
	}
}

// Stop halts all timers and waits for in-flight ticks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, tier RefreshTier, interval time.Duration) {
	defer s.wg.Done()
	log := logging.With().Str("component", "scheduler").Str("tier", tier.String()).Logger()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-timer.C:
		}

		start := time.Now()
		err := s.tick(ctx, tier)
		elapsed := time.Since(start)
		if err != nil {
			metrics.RefreshRuns.WithLabelValues(tier.String(), "failure").Inc()
			log.Warn().Err(err).Dur("elapsed", elapsed).Msg("refresh pass failed")
		} else {
			metrics.RefreshRuns.WithLabelValues(tier.String(), "success").Inc()
			log.Debug().Dur("elapsed", elapsed).Msg("refresh pass complete")
		}

		// Re-arm only now that the pass is done.
		timer.Reset(interval)
	}
}
