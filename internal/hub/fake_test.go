// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rknightion/merakimirror/internal/breaker"
	"github.com/rknightion/merakimirror/internal/config"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/respcache"
	"github.com/rknightion/merakimirror/internal/retry"
)

// fakeClient is an in-memory dashboard.Client with scriptable failures and
// per-operation call counting.
type fakeClient struct {
	mu sync.Mutex

	org        *dashboard.Organization
	networks   []dashboard.Network
	orgDevices []dashboard.Device
	netDevices map[string][]dashboard.Device
	configs    map[string]map[string]string
	readings   map[string]dashboard.Reading

	errOrg        error
	errNetworks   error
	errOrgDevices error
	errNetDevices map[string]error
	errConfig     map[string]error
	errTelemetry  map[string]error

	calls   map[string]int
	batches [][]string

	// blockTelemetry, when set, makes telemetry calls wait for ctx.
	blockTelemetry bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		org:           &dashboard.Organization{ID: "123", Name: "Acme"},
		netDevices:    make(map[string][]dashboard.Device),
		configs:       make(map[string]map[string]string),
		readings:      make(map[string]dashboard.Reading),
		errNetDevices: make(map[string]error),
		errConfig:     make(map[string]error),
		errTelemetry:  make(map[string]error),
		calls:         make(map[string]int),
	}
}

func (f *fakeClient) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeClient) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) GetOrganization(ctx context.Context, orgID string) (*dashboard.Organization, error) {
	f.count("organization")
	if f.errOrg != nil {
		return nil, f.errOrg
	}
	return f.org, nil
}

func (f *fakeClient) GetNetworks(ctx context.Context, orgID string) ([]dashboard.Network, error) {
	f.count("networks")
	if f.errNetworks != nil {
		return nil, f.errNetworks
	}
	return f.networks, nil
}

func (f *fakeClient) GetOrganizationDevices(ctx context.Context, orgID string) ([]dashboard.Device, error) {
	f.count("org_devices")
	if f.errOrgDevices != nil {
		return nil, f.errOrgDevices
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dashboard.Device(nil), f.orgDevices...), nil
}

func (f *fakeClient) GetNetworkDevices(ctx context.Context, networkID string) ([]dashboard.Device, error) {
	f.count("net_devices")
	if err := f.errNetDevices[networkID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dashboard.Device(nil), f.netDevices[networkID]...), nil
}

func (f *fakeClient) GetNetworkConfig(ctx context.Context, networkID string, t dashboard.DeviceType) (*dashboard.ConfigSnapshot, error) {
	f.count("config")
	if err := f.errConfig[networkID]; err != nil {
		return nil, err
	}
	return &dashboard.ConfigSnapshot{
		NetworkID: networkID,
		Type:      t,
		Settings:  f.configs[networkID],
		FetchedAt: time.Now(),
	}, nil
}

func (f *fakeClient) telemetry(ctx context.Context, networkID string, serials []string) (map[string]dashboard.Reading, error) {
	f.count("telemetry")
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), serials...))
	blocked := f.blockTelemetry
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errTelemetry[networkID]; err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]dashboard.Reading, len(serials))
	for _, s := range serials {
		if r, ok := f.readings[s]; ok {
			out[s] = r
		}
	}
	return out, nil
}

func (f *fakeClient) GetSensorReadings(ctx context.Context, networkID string, serials []string) (map[string]dashboard.Reading, error) {
	return f.telemetry(ctx, networkID, serials)
}

func (f *fakeClient) GetWirelessStatuses(ctx context.Context, networkID string, serials []string) (map[string]dashboard.Reading, error) {
	return f.telemetry(ctx, networkID, serials)
}

func (f *fakeClient) GetSwitchPortStatuses(ctx context.Context, networkID string, serials []string) (map[string]dashboard.Reading, error) {
	return f.telemetry(ctx, networkID, serials)
}

func (f *fakeClient) GetCameraAnalytics(ctx context.Context, networkID string, serials []string) (map[string]dashboard.Reading, error) {
	return f.telemetry(ctx, networkID, serials)
}

var _ dashboard.Client = (*fakeClient)(nil)

// countingGate counts permits without pacing.
type countingGate struct {
	mu sync.Mutex
	n  int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
	return nil
}

func (g *countingGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func mtDevice(serial, networkID string) dashboard.Device {
	return dashboard.Device{
		Serial:    serial,
		Model:     "MT10",
		NetworkID: networkID,
		Type:      dashboard.DeviceTypeMT,
		Status:    dashboard.StatusOnline,
	}
}

func mrDevice(serial, networkID string) dashboard.Device {
	return dashboard.Device{
		Serial:    serial,
		Model:     "MR46",
		NetworkID: networkID,
		Type:      dashboard.DeviceTypeMR,
		Status:    dashboard.StatusOnline,
	}
}

// testPolicies keeps retries fast and deterministic.
func testPolicies() Policies {
	return Policies{
		Discovery: retry.NewPolicy(retry.ClassDiscovery, time.Millisecond, 2*time.Millisecond, 0, 3),
		Config:    retry.NewPolicy(retry.ClassConfig, time.Millisecond, 2*time.Millisecond, 0, 2),
		Realtime:  retry.NewPolicy(retry.ClassRealtime, time.Millisecond, 2*time.Millisecond, 0, 2),
	}
}

type hubOverrides struct {
	breaker  breaker.Settings
	maxBatch int
	policies *Policies
}

func newTestHub(key dashboard.PartitionKey, client dashboard.Client, gate PermitGate, o hubOverrides) *NetworkHub {
	if o.breaker.FailureThreshold == 0 {
		o.breaker = breaker.Settings{FailureThreshold: 5, Cooldown: time.Minute}
	}
	if o.maxBatch == 0 {
		o.maxBatch = 100
	}
	pol := testPolicies()
	if o.policies != nil {
		pol = *o.policies
	}
	cache := respcache.New(0)
	return NewNetworkHub(NetworkHubParams{
		Key:       key,
		Client:    client,
		Gate:      gate,
		Cache:     cache,
		Diag:      NewDiagnostics(),
		Policies:  pol,
		Breaker:   o.breaker,
		ConfigTTL: time.Minute,
		MaxBatch:  o.maxBatch,
	})
}

// testOrgConfig is a fast-cadence configuration for organization hub tests.
func testOrgConfig() *config.Config {
	return &config.Config{
		Dashboard: config.DashboardConfig{
			BaseURL:        "https://api.example.test",
			APIKey:         "k",
			OrganizationID: "123",
			Timeout:        time.Second,
		},
		RateLimit: config.RateLimitConfig{PerSecond: 0, Burst: 1, MaxBatchSize: 100},
		Refresh: config.RefreshConfig{
			StaticInterval:     time.Hour,
			SemiStaticInterval: time.Hour,
			DynamicInterval:    time.Hour,
			ConfigTTL:          time.Minute,
		},
		Retry: config.RetryConfig{
			Base:              time.Millisecond,
			Cap:               2 * time.Millisecond,
			Randomization:     0,
			DiscoveryAttempts: 2,
			ConfigAttempts:    2,
			RealtimeAttempts:  2,
		},
		Breaker: config.BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute},
	}
}
