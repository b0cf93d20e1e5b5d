// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rknightion/merakimirror/internal/breaker"
	"github.com/rknightion/merakimirror/internal/config"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/logging"
	"github.com/rknightion/merakimirror/internal/metrics"
	"github.com/rknightion/merakimirror/internal/ratelimit"
	"github.com/rknightion/merakimirror/internal/respcache"
	"github.com/rknightion/merakimirror/internal/retry"
)

// ErrNotReady marks a transient setup failure: the upstream could not be
// reached but the credentials were never rejected, so the caller may simply
// invoke Setup again.
var ErrNotReady = errors.New("organization hub not ready")

// OrganizationHub is the root of the hierarchy for one tenant. It validates
// the organization, discovers the (network, device type) partitions, creates
// and retires NetworkHubs to match, and owns everything the hubs share: the
// rate limiter, the response cache, the diagnostics accumulator and the
// tiered refresh scheduler.
type OrganizationHub struct {
	client    dashboard.Client
	cfg       *config.Config
	gate      PermitGate
	cache     *respcache.Cache
	diag      *Diagnostics
	discovery *breaker.Breaker
	policies  Policies
	scheduler *Scheduler
	now       func() time.Time
	log       zerolog.Logger

	mu       sync.RWMutex
	org      *dashboard.Organization
	networks map[string]dashboard.Network
	hubs     map[dashboard.PartitionKey]*NetworkHub
	ready    bool
}

// Option tweaks hub construction. Used by tests to inject clocks and gates.
type Option func(*OrganizationHub)

// WithClock substitutes the hub's time source.
func WithClock(now func() time.Time) Option {
	return func(o *OrganizationHub) { o.now = now }
}

// WithGate substitutes the shared rate-limiter gate.
func WithGate(gate PermitGate) Option {
	return func(o *OrganizationHub) { o.gate = gate }
}

// NewOrganizationHub wires the shared machinery from configuration. The hub
// starts cold: call Setup, then DiscoverPartitions, then Start.
func NewOrganizationHub(client dashboard.Client, cfg *config.Config, opts ...Option) *OrganizationHub {
	o := &OrganizationHub{
		client: client,
		cfg:    cfg,
		gate:   ratelimit.New("organization", cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		cache:  respcache.New(time.Minute),
		diag:   NewDiagnostics(),
		discovery: breaker.New("discovery", breaker.Settings{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
		}),
		policies: policiesFromConfig(cfg.Retry),
		now:      time.Now,
		log:      logging.With().Str("component", "orghub").Str("organization", cfg.Dashboard.OrganizationID).Logger(),
		networks: make(map[string]dashboard.Network),
		hubs:     make(map[dashboard.PartitionKey]*NetworkHub),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.scheduler = NewScheduler(map[RefreshTier]time.Duration{
		TierStatic:     cfg.Refresh.StaticInterval,
		TierSemiStatic: cfg.Refresh.SemiStaticInterval,
		TierDynamic:    cfg.Refresh.DynamicInterval,
	}, o.refreshTier)
	return o
}

func policiesFromConfig(rc config.RetryConfig) Policies {
	return Policies{
		Discovery: retry.NewPolicy(retry.ClassDiscovery, rc.Base, rc.Cap, rc.Randomization, rc.DiscoveryAttempts),
		Config:    retry.NewPolicy(retry.ClassConfig, rc.Base, rc.Cap, rc.Randomization, rc.ConfigAttempts),
		Realtime:  retry.NewPolicy(retry.ClassRealtime, rc.Base, rc.Cap, rc.Randomization, rc.RealtimeAttempts),
	}
}

// Setup validates the organization and loads its network inventory.
// Authentication failures are permanent and reported as-is; anything
// transient comes back wrapped in ErrNotReady so the caller knows a plain
// re-invoke may succeed. Setup is idempotent.
func (o *OrganizationHub) Setup(ctx context.Context) error {
	orgID := o.cfg.Dashboard.OrganizationID

	org, err := discoveryCall(ctx, o, "organization", func(ctx context.Context) (*dashboard.Organization, error) {
		return o.client.GetOrganization(ctx, orgID)
	})
	if err != nil {
		return o.setupFailure("organization lookup", err)
	}

	networks, err := discoveryCall(ctx, o, "networks", func(ctx context.Context) ([]dashboard.Network, error) {
		return o.client.GetNetworks(ctx, orgID)
	})
	if err != nil {
		return o.setupFailure("network listing", err)
	}

	o.mu.Lock()
	o.org = org
	o.networks = make(map[string]dashboard.Network, len(networks))
	for _, n := range networks {
		o.networks[n.ID] = n
	}
	o.ready = true
	o.mu.Unlock()

	o.log.Info().Str("org_name", org.Name).Int("networks", len(networks)).Msg("organization hub ready")
	return nil
}

func (o *OrganizationHub) setupFailure(stage string, err error) error {
	if dashboard.IsFatal(err) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%s: %w: %w", stage, ErrNotReady, err)
}

// discoveryCall runs an organization-scope operation through the discovery
// breaker, retry policy and shared limiter, mirroring the per-hub pipeline.
func discoveryCall[T any](ctx context.Context, o *OrganizationHub, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := breaker.Guard(o.discovery, func() (T, error) {
		var result T
		execErr := o.policies.Discovery.Execute(ctx, func(ctx context.Context) error {
			if err := o.gate.Acquire(ctx); err != nil {
				return err
			}
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			result = v
			return nil
		})
		return result, execErr
	})
	result := "success"
	if errors.Is(err, breaker.ErrCircuitOpen) {
		result = "short_circuited"
	} else if err != nil {
		result = "failure"
	}
	metrics.APICallsTotal.WithLabelValues("organization", operation, result).Inc()
	if !errors.Is(err, breaker.ErrCircuitOpen) {
		metrics.APICallDuration.WithLabelValues("organization", operation).Observe(time.Since(start).Seconds())
		o.diag.RecordCall("organization", err != nil)
	}
	return out, err
}

// DiscoverPartitions lists the organization's devices, derives the desired
// partition set and reconciles the loaded hubs against it: new partitions
// get a hub seeded with the devices just discovered, vanished partitions
// are unloaded. Running it twice against an unchanged inventory is a no-op,
// and surviving hubs keep their state across runs.
func (o *OrganizationHub) DiscoverPartitions(ctx context.Context) error {
	if !o.Ready() {
		return ErrNotReady
	}

	devices, err := discoveryCall(ctx, o, "org_devices", func(ctx context.Context) ([]dashboard.Device, error) {
		return o.client.GetOrganizationDevices(ctx, o.cfg.Dashboard.OrganizationID)
	})
	if err != nil {
		return fmt.Errorf("device discovery: %w", err)
	}

	desired := partitionsOf(devices)

	o.mu.Lock()
	added, removed := diffPartitions(keySet(o.hubs), keySet(desired))
	for _, key := range added {
		h := NewNetworkHub(NetworkHubParams{
			Key:      key,
			Client:   o.client,
			Gate:     o.gate,
			Cache:    o.cache,
			Diag:     o.diag,
			Policies: o.policies,
			Breaker: breaker.Settings{
				FailureThreshold: o.cfg.Breaker.FailureThreshold,
				Cooldown:         o.cfg.Breaker.Cooldown,
			},
			ConfigTTL: o.cfg.Refresh.ConfigTTL,
			MaxBatch:  o.cfg.RateLimit.MaxBatchSize,
			Now:       o.now,
		})
		h.seedDevices(desired[key])
		o.hubs[key] = h
		o.log.Info().Str("hub", key.String()).Int("devices", len(desired[key])).Msg("network hub created")
	}
	for _, key := range removed {
		o.hubs[key].Unload()
		delete(o.hubs, key)
	}
	// Surviving hubs also get the fresh inventory; the org-wide listing
	// already paid for it.
	for key, h := range o.hubs {
		if containsKey(added, key) {
			continue
		}
		h.seedDevices(desired[key])
	}
	count := len(o.hubs)
	o.mu.Unlock()

	metrics.HubsActive.Set(float64(count))
	if len(added) > 0 || len(removed) > 0 {
		o.log.Info().Int("created", len(added)).Int("removed", len(removed)).Int("active", count).
			Msg("partition set reconciled")
	}
	return nil
}

func containsKey(keys []dashboard.PartitionKey, key dashboard.PartitionKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Start launches the tiered refresh scheduler. Setup must have succeeded.
func (o *OrganizationHub) Start(ctx context.Context) error {
	if !o.Ready() {
		return ErrNotReady
	}
	o.scheduler.Start(ctx)
	o.log.Info().Msg("refresh scheduler started")
	return nil
}

// Teardown stops the scheduler, unloads every hub and releases the shared
// cache. The hub can be garbage collected afterwards.
func (o *OrganizationHub) Teardown() {
	o.scheduler.Stop()
	o.mu.Lock()
	for key, h := range o.hubs {
		h.Unload()
		delete(o.hubs, key)
	}
	o.ready = false
	o.mu.Unlock()
	o.cache.Close()
	metrics.HubsActive.Set(0)
	o.log.Info().Msg("organization hub torn down")
}

// refreshTier is the scheduler's tick handler. The static tier re-discovers
// partitions first so hub creation and retirement ride the same cadence as
// device inventory. Hubs refresh concurrently; one hub's failure never
// blocks another's update, it only withholds the tier's last-success stamp.
func (o *OrganizationHub) refreshTier(ctx context.Context, tier RefreshTier) error {
	if tier == TierStatic {
		if err := o.DiscoverPartitions(ctx); err != nil {
			o.log.Warn().Err(err).Msg("partition discovery failed")
			return err
		}
	}

	hubs := o.Hubs()
	errs := make([]error, len(hubs))
	var wg sync.WaitGroup
	for i, h := range hubs {
		wg.Add(1)
		go func(i int, h *NetworkHub) {
			defer wg.Done()
			errs[i] = h.Refresh(ctx, tier)
		}(i, h)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s refresh: %d of %d hubs failed", tier, failed, len(hubs))
	}

	now := o.now()
	o.diag.RecordTierSuccess(tier, now)
	metrics.RefreshLastSuccess.WithLabelValues(tier.String()).Set(float64(now.Unix()))
	return nil
}

// ForceRefresh bypasses the cache and timers for the given tier, or for all
// tiers when tier is nil. Cached responses for the tier are invalidated
// before fetching so the refresh really reaches the upstream.
func (o *OrganizationHub) ForceRefresh(ctx context.Context, tier *RefreshTier) error {
	tiers := AllTiers
	if tier != nil {
		tiers = []RefreshTier{*tier}
	}
	var errs []error
	for _, t := range tiers {
		for _, h := range o.Hubs() {
			h.InvalidateTier(t)
		}
		if err := o.refreshTier(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether Setup has completed successfully.
func (o *OrganizationHub) Ready() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready
}

// Organization returns the validated organization, or nil before Setup.
func (o *OrganizationHub) Organization() *dashboard.Organization {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.org
}

// Networks returns the organization's networks keyed by ID.
func (o *OrganizationHub) Networks() map[string]dashboard.Network {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]dashboard.Network, len(o.networks))
	for id, n := range o.networks {
		out[id] = n
	}
	return out
}

// Hubs returns the loaded network hubs in deterministic order.
func (o *OrganizationHub) Hubs() []*NetworkHub {
	o.mu.RLock()
	keys := make([]dashboard.PartitionKey, 0, len(o.hubs))
	for key := range o.hubs {
		keys = append(keys, key)
	}
	hubs := make([]*NetworkHub, 0, len(keys))
	sortKeys(keys)
	for _, key := range keys {
		hubs = append(hubs, o.hubs[key])
	}
	o.mu.RUnlock()
	return hubs
}

// Hub returns the hub for one partition, if loaded.
func (o *OrganizationHub) Hub(key dashboard.PartitionKey) (*NetworkHub, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.hubs[key]
	return h, ok
}

// Diagnostics assembles the organization-wide snapshot.
func (o *OrganizationHub) Diagnostics() Snapshot {
	total, failed := o.diag.Totals()
	snap := Snapshot{
		TotalCalls:         total,
		FailedCalls:        failed,
		LastSuccessPerTier: o.diag.LastSuccess(),
	}
	for _, h := range o.Hubs() {
		snap.Hubs = append(snap.Hubs, h.Diagnostics())
	}
	return snap
}
