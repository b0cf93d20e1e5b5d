// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package main is the entry point for the Meraki Mirror daemon.
//
// Meraki Mirror maintains a resilient in-memory replica of one Meraki
// organization's dashboard state: networks, devices, configuration
// snapshots and live telemetry, partitioned by (network, device type).
// Every upstream call rides a fixed resilience chain (response cache,
// circuit breaker, bounded retry, shared rate limiter), so a degraded
// cloud API slows the mirror down instead of knocking it over.
//
// Startup order:
//
//  1. Configuration: layered via Koanf v2 (defaults, config.yaml, MIRROR_* env)
//  2. Logging: zerolog, JSON or console per config
//  3. Organization hub: transport client, shared limiter, cache, policies
//  4. Supervision tree: mirror layer (hub + scheduler) and api layer
//     (diagnostics HTTP server) under suture
//
// The daemon shuts down gracefully on SIGINT and SIGTERM: scheduler timers
// stop, in-flight fetches are cancelled, the diagnostics server drains.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rknightion/merakimirror/internal/config"
	"github.com/rknightion/merakimirror/internal/coordinator"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/diagserver"
	"github.com/rknightion/merakimirror/internal/hub"
	"github.com/rknightion/merakimirror/internal/logging"
	"github.com/rknightion/merakimirror/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("organization", cfg.Dashboard.OrganizationID).
		Str("base_url", cfg.Dashboard.BaseURL).
		Float64("rate_per_second", cfg.RateLimit.PerSecond).
		Msg("Starting Meraki Mirror")

	client := dashboard.NewHTTPClient(cfg.Dashboard.BaseURL, cfg.Dashboard.APIKey, cfg.Dashboard.Timeout)
	org := hub.NewOrganizationHub(client, cfg)
	co := coordinator.New(org)

	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: 10 * time.Second})
	tree.AddMirrorService(supervisor.NewMirrorService(org))
	if cfg.Diag.Enabled {
		tree.AddAPIService(supervisor.NewHTTPService(diagserver.New(cfg.Diag.Addr, co)))
		logging.Info().Str("addr", cfg.Diag.Addr).Msg("Diagnostics server enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}
	logging.Info().Msg("Shutdown complete")
}
