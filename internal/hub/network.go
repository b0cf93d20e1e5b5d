// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package hub implements the two-level hub hierarchy that mirrors one
// organization's dashboard state. An OrganizationHub discovers the
// (network, device type) partitions and owns the shared rate limiter,
// response cache and refresh scheduler; each NetworkHub mirrors exactly one
// partition behind its own circuit breaker.
//
// Every upstream fetch passes through the same fixed pipeline, outermost to
// innermost: response cache, circuit breaker, retry policy, rate limiter,
// transport. The ordering is load-bearing: a cache hit consumes no rate
// budget, and an open breaker rejects before any limiter permit is taken,
// so a failing hub cannot starve its healthy siblings.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rknightion/merakimirror/internal/breaker"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/logging"
	"github.com/rknightion/merakimirror/internal/metrics"
	"github.com/rknightion/merakimirror/internal/ratelimit"
	"github.com/rknightion/merakimirror/internal/respcache"
	"github.com/rknightion/merakimirror/internal/retry"
)

// PermitGate is the slice of the shared rate limiter a network hub needs.
// *ratelimit.Limiter satisfies it; tests substitute counting gates.
type PermitGate interface {
	Acquire(ctx context.Context) error
}

// Policies bundles the per-class retry policies handed to every hub.
type Policies struct {
	Discovery retry.Policy
	Config    retry.Policy
	Realtime  retry.Policy
}

// NetworkHubParams collects the shared machinery a NetworkHub borrows from
// its organization hub, plus its own identity.
type NetworkHubParams struct {
	Key       dashboard.PartitionKey
	Client    dashboard.Client
	Gate      PermitGate
	Cache     *respcache.Cache
	Diag      *Diagnostics
	Policies  Policies
	Breaker   breaker.Settings
	ConfigTTL time.Duration
	MaxBatch  int

	// Now is the clock; nil means time.Now. Injectable for tests.
	Now func() time.Time
}

// NetworkHub mirrors one (network, device type) partition. It holds the
// partition's device inventory, latest configuration snapshot and telemetry
// readings, and exposes the three tier fetches. All exported methods are
// safe for concurrent use.
type NetworkHub struct {
	key       dashboard.PartitionKey
	client    dashboard.Client
	gate      PermitGate
	cache     *respcache.Cache
	diag      *Diagnostics
	policies  Policies
	breaker   *breaker.Breaker
	configTTL time.Duration
	maxBatch  int
	now       func() time.Time
	log       zerolog.Logger

	// ctx is cancelled by Unload so in-flight fetches abandon promptly.
	ctx    context.Context
	cancel context.CancelFunc

	// tierMu serializes same-tier refreshes on this hub; different tiers
	// and different hubs proceed independently.
	tierMu [tierCount]sync.Mutex

	mu       sync.RWMutex
	devices  []dashboard.Device
	config   *dashboard.ConfigSnapshot
	readings map[string]dashboard.Reading
	lastSeen time.Time
}

// NewNetworkHub assembles a hub for one partition. The hub is live
// immediately; it holds no goroutines of its own, the scheduler drives it.
func NewNetworkHub(p NetworkHubParams) *NetworkHub {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &NetworkHub{
		key:       p.Key,
		client:    p.Client,
		gate:      p.Gate,
		cache:     p.Cache,
		diag:      p.Diag,
		policies:  p.Policies,
		breaker:   breaker.New(p.Key.String(), p.Breaker),
		configTTL: p.ConfigTTL,
		maxBatch:  p.MaxBatch,
		now:       now,
		log:       logging.With().Str("hub", p.Key.String()).Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	return h
}

// Key returns the hub's partition identity.
func (h *NetworkHub) Key() dashboard.PartitionKey { return h.key }

// ID returns the hub's string identity, "networkID/TYPE".
func (h *NetworkHub) ID() string { return h.key.String() }

// CircuitState reports the hub's breaker state as closed, open or half_open.
func (h *NetworkHub) CircuitState() string { return h.breaker.State() }

// Unload cancels the hub's in-flight work and invalidates every cache entry
// it owns. The hub must not be used afterwards.
func (h *NetworkHub) Unload() {
	h.cancel()
	for _, tier := range AllTiers {
		h.cache.Invalidate(respcache.NamespacePrefix(tier.Namespace(), h.ID()))
	}
	h.diag.Forget(h.ID())
	metrics.DevicesMirrored.DeleteLabelValues(h.ID())
	h.log.Info().Msg("network hub unloaded")
}

// call runs one upstream operation through breaker, retry and rate limiter,
// in that order. The cache, when an operation uses one, sits outside in the
// operation itself. T crosses the breaker boundary so callers keep their
// result types without assertions.
func call[T any](ctx context.Context, h *NetworkHub, pol retry.Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	// Merge the request context with the hub lifetime so Unload aborts
	// fetches that are already past the breaker.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	callID := uuid.NewString()
	start := time.Now()
	out, err := breaker.Guard(h.breaker, func() (T, error) {
		var result T
		execErr := pol.Execute(ctx, func(ctx context.Context) error {
			if err := h.gate.Acquire(ctx); err != nil {
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

	elapsed := time.Since(start)
	switch {
	case errors.Is(err, breaker.ErrCircuitOpen):
		metrics.APICallsTotal.WithLabelValues(h.ID(), operation, "short_circuited").Inc()
		h.log.Debug().Str("operation", operation).Str("call_id", callID).Msg("short-circuited by open breaker")
	case err != nil:
		metrics.APICallsTotal.WithLabelValues(h.ID(), operation, "failure").Inc()
		metrics.APICallDuration.WithLabelValues(h.ID(), operation).Observe(elapsed.Seconds())
		h.diag.RecordCall(h.ID(), true)
		h.log.Warn().Err(err).Str("operation", operation).Str("call_id", callID).
			Dur("elapsed", elapsed).Msg("upstream call failed")
	default:
		metrics.APICallsTotal.WithLabelValues(h.ID(), operation, "success").Inc()
		metrics.APICallDuration.WithLabelValues(h.ID(), operation).Observe(elapsed.Seconds())
		h.diag.RecordCall(h.ID(), false)
	}
	return out, err
}

// FetchDevices refreshes the partition's device inventory (static tier).
// The stored list is replaced wholesale on success; devices that were
// present before but absent from the fresh listing are retained with status
// removed rather than silently dropped. Upstream 404 means the network is
// gone and yields an empty inventory, not an error.
func (h *NetworkHub) FetchDevices(ctx context.Context) ([]dashboard.Device, error) {
	fetched, err := call(ctx, h, h.policies.Discovery, "devices", func(ctx context.Context) ([]dashboard.Device, error) {
		all, err := h.client.GetNetworkDevices(ctx, h.key.NetworkID)
		if err != nil {
			if dashboard.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		kept := make([]dashboard.Device, 0, len(all))
		for _, d := range all {
			if d.Type == h.key.Type {
				kept = append(kept, d)
			}
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	h.replaceDevices(fetched)
	return h.Devices(), nil
}

// replaceDevices installs a fresh inventory, carrying forward vanished
// devices as removed.
func (h *NetworkHub) replaceDevices(fetched []dashboard.Device) {
	present := make(map[string]struct{}, len(fetched))
	for _, d := range fetched {
		present[d.Serial] = struct{}{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next := make([]dashboard.Device, len(fetched), len(fetched)+len(h.devices))
	copy(next, fetched)
	for _, old := range h.devices {
		if _, ok := present[old.Serial]; !ok {
			old.Status = dashboard.StatusRemoved
			next = append(next, old)
		}
	}
	h.devices = next
	h.lastSeen = h.now()
	metrics.DevicesMirrored.WithLabelValues(h.key.String()).Set(float64(len(fetched)))
}

// seedDevices installs an inventory discovered by the organization-wide
// listing, so a freshly created hub is populated without a second call.
func (h *NetworkHub) seedDevices(devices []dashboard.Device) {
	h.replaceDevices(devices)
}

// FetchConfiguration returns the partition's configuration snapshot
// (semi-static tier). Snapshots are served from the response cache within
// the configured TTL; a cache hit consumes neither rate budget nor breaker
// state.
func (h *NetworkHub) FetchConfiguration(ctx context.Context) (*dashboard.ConfigSnapshot, error) {
	key := respcache.Key(TierSemiStatic.Namespace(), h.ID(), "config", nil)
	snap, err := respcache.GetOrCompute(h.cache, key, h.configTTL, func() (*dashboard.ConfigSnapshot, error) {
		return call(ctx, h, h.policies.Config, "config", func(ctx context.Context) (*dashboard.ConfigSnapshot, error) {
			return h.client.GetNetworkConfig(ctx, h.key.NetworkID, h.key.Type)
		})
	})
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.config = snap
	h.mu.Unlock()
	return snap, nil
}

// FetchTelemetry pulls current readings for the given serials, or for every
// non-removed device in the partition when serials is nil (dynamic tier).
// Requests above the transport's batch ceiling are split into sequential
// groups, each passing through the pipeline separately so the limiter paces
// them. Telemetry is all-or-nothing: a failed group publishes nothing.
func (h *NetworkHub) FetchTelemetry(ctx context.Context, serials []string) (map[string]dashboard.Reading, error) {
	if serials == nil {
		serials = h.activeSerials()
	}
	if len(serials) == 0 {
		return map[string]dashboard.Reading{}, nil
	}

	fetch := telemetryStrategies[h.key.Type]
	merged := make(map[string]dashboard.Reading, len(serials))
	for _, group := range ratelimit.Batch(serials, h.maxBatch) {
		part, err := call(ctx, h, h.policies.Realtime, "telemetry", func(ctx context.Context) (map[string]dashboard.Reading, error) {
			return fetch(ctx, h.client, h.key.NetworkID, group)
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry batch of %d: %w", len(group), err)
		}
		for serial, r := range part {
			merged[serial] = r
		}
	}

	h.mu.Lock()
	h.readings = merged
	h.lastSeen = h.now()
	h.mu.Unlock()
	return h.Telemetry(), nil
}

// Refresh runs the fetch belonging to the given tier. Same-tier refreshes
// on one hub are serialized; a forced refresh arriving while the scheduled
// one runs simply waits its turn.
func (h *NetworkHub) Refresh(ctx context.Context, tier RefreshTier) error {
	h.tierMu[tier].Lock()
	defer h.tierMu[tier].Unlock()

	var err error
	switch tier {
	case TierStatic:
		_, err = h.FetchDevices(ctx)
	case TierSemiStatic:
		_, err = h.FetchConfiguration(ctx)
	case TierDynamic:
		_, err = h.FetchTelemetry(ctx, nil)
	default:
		err = fmt.Errorf("unknown refresh tier %d", tier)
	}
	return err
}

// InvalidateTier drops this hub's cached responses for one tier, forcing
// the next fetch to hit the upstream.
func (h *NetworkHub) InvalidateTier(tier RefreshTier) {
	h.cache.Invalidate(respcache.NamespacePrefix(tier.Namespace(), h.ID()))
}

// Devices returns a copy of the current inventory, removed devices included.
func (h *NetworkHub) Devices() []dashboard.Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]dashboard.Device, len(h.devices))
	copy(out, h.devices)
	return out
}

// Configuration returns the last fetched configuration snapshot, or nil.
func (h *NetworkHub) Configuration() *dashboard.ConfigSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Telemetry returns a copy of the latest readings keyed by serial.
func (h *NetworkHub) Telemetry() map[string]dashboard.Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]dashboard.Reading, len(h.readings))
	for serial, r := range h.readings {
		out[serial] = r
	}
	return out
}

// Diagnostics returns this hub's slice of the shared counters.
func (h *NetworkHub) Diagnostics() HubDiagnostics {
	total, failed := h.diag.HubTotals(h.ID())
	h.mu.RLock()
	devices := len(h.devices)
	lastSeen := h.lastSeen
	h.mu.RUnlock()
	return HubDiagnostics{
		HubID:        h.ID(),
		TotalCalls:   total,
		FailedCalls:  failed,
		CircuitState: h.breaker.State(),
		Devices:      devices,
		LastSeen:     lastSeen,
	}
}

func (h *NetworkHub) activeSerials() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	serials := make([]string, 0, len(h.devices))
	for _, d := range h.devices {
		if d.Status != dashboard.StatusRemoved {
			serials = append(serials, d.Serial)
		}
	}
	return serials
}
