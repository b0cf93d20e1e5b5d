// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknightion/merakimirror/internal/config"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/hub"
)

// memClient is a minimal in-memory dashboard.Client: one network with two
// MT sensors.
type memClient struct {
	mu        sync.Mutex
	telemetry int
	configs   int
}

func (m *memClient) GetOrganization(context.Context, string) (*dashboard.Organization, error) {
	return &dashboard.Organization{ID: "123", Name: "Acme"}, nil
}

func (m *memClient) GetNetworks(context.Context, string) ([]dashboard.Network, error) {
	return []dashboard.Network{{ID: "N_1", Name: "HQ"}}, nil
}

func (m *memClient) GetOrganizationDevices(context.Context, string) ([]dashboard.Device, error) {
	return m.devices(), nil
}

func (m *memClient) GetNetworkDevices(context.Context, string) ([]dashboard.Device, error) {
	return m.devices(), nil
}

func (m *memClient) devices() []dashboard.Device {
	return []dashboard.Device{
		{Serial: "Q1", Model: "MT10", NetworkID: "N_1", Type: dashboard.DeviceTypeMT, Status: dashboard.StatusOnline},
		{Serial: "Q2", Model: "MT11", NetworkID: "N_1", Type: dashboard.DeviceTypeMT, Status: dashboard.StatusOnline},
	}
}

func (m *memClient) GetNetworkConfig(_ context.Context, networkID string, t dashboard.DeviceType) (*dashboard.ConfigSnapshot, error) {
	m.mu.Lock()
	m.configs++
	m.mu.Unlock()
	return &dashboard.ConfigSnapshot{NetworkID: networkID, Type: t, Settings: map[string]string{"mode": "auto"}}, nil
}

func (m *memClient) readings(serials []string) map[string]dashboard.Reading {
	m.mu.Lock()
	m.telemetry++
	m.mu.Unlock()
	out := make(map[string]dashboard.Reading, len(serials))
	for _, s := range serials {
		out[s] = dashboard.Reading{Serial: s, Metric: "temperature", Value: 21}
	}
	return out
}

func (m *memClient) GetSensorReadings(_ context.Context, _ string, serials []string) (map[string]dashboard.Reading, error) {
	return m.readings(serials), nil
}

func (m *memClient) GetWirelessStatuses(_ context.Context, _ string, serials []string) (map[string]dashboard.Reading, error) {
	return m.readings(serials), nil
}

func (m *memClient) GetSwitchPortStatuses(_ context.Context, _ string, serials []string) (map[string]dashboard.Reading, error) {
	return m.readings(serials), nil
}

func (m *memClient) GetCameraAnalytics(_ context.Context, _ string, serials []string) (map[string]dashboard.Reading, error) {
	return m.readings(serials), nil
}

var _ dashboard.Client = (*memClient)(nil)

func testConfig() *config.Config {
	return &config.Config{
		Dashboard: config.DashboardConfig{
			BaseURL:        "https://api.example.test",
			APIKey:         "k",
			OrganizationID: "123",
			Timeout:        time.Second,
		},
		RateLimit: config.RateLimitConfig{PerSecond: 0, Burst: 1, MaxBatchSize: 10},
		Refresh: config.RefreshConfig{
			StaticInterval:     time.Hour,
			SemiStaticInterval: time.Hour,
			DynamicInterval:    time.Hour,
			ConfigTTL:          time.Minute,
		},
		Retry: config.RetryConfig{
			Base: time.Millisecond, Cap: 2 * time.Millisecond,
			DiscoveryAttempts: 2, ConfigAttempts: 2, RealtimeAttempts: 2,
		},
		Breaker: config.BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute},
	}
}

func newReadyCoordinator(t *testing.T) (*Coordinator, *memClient) {
	t.Helper()
	client := &memClient{}
	org := hub.NewOrganizationHub(client, testConfig())
	t.Cleanup(org.Teardown)
	ctx := context.Background()
	require.NoError(t, org.Setup(ctx))
	require.NoError(t, org.DiscoverPartitions(ctx))
	return New(org), client
}

func TestPartitionsAndDevices(t *testing.T) {
	co, _ := newReadyCoordinator(t)

	parts := co.Partitions()
	require.Len(t, parts, 1)
	key := parts[0]
	assert.Equal(t, "N_1/MT", key.String())

	devices, err := co.Devices(key)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestUnknownPartition(t *testing.T) {
	co, _ := newReadyCoordinator(t)
	unknown := dashboard.PartitionKey{NetworkID: "N_9", Type: dashboard.DeviceTypeMV}

	_, err := co.Devices(unknown)
	require.Error(t, err)
	_, err = co.Telemetry(context.Background(), unknown, nil)
	require.Error(t, err)
	_, err = co.Configuration(context.Background(), unknown)
	require.Error(t, err)
}

func TestTelemetryThroughFacade(t *testing.T) {
	co, client := newReadyCoordinator(t)
	key := co.Partitions()[0]

	readings, err := co.Telemetry(context.Background(), key, nil)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.Equal(t, 1, client.telemetry)
}

func TestConfigurationCachedThroughFacade(t *testing.T) {
	co, client := newReadyCoordinator(t)
	key := co.Partitions()[0]
	ctx := context.Background()

	snap, err := co.Configuration(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "auto", snap.Settings["mode"])

	_, err = co.Configuration(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, client.configs, "second read within TTL is a cache hit")
}

func TestForceRefresh(t *testing.T) {
	co, client := newReadyCoordinator(t)
	ctx := context.Background()

	require.NoError(t, co.ForceRefresh(ctx, "dynamic"))
	assert.Equal(t, 1, client.telemetry)

	require.NoError(t, co.ForceRefresh(ctx, ""))
	assert.Greater(t, client.telemetry, 1)

	err := co.ForceRefresh(ctx, "hourly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown refresh tier")
}

func TestDiagnosticsThroughFacade(t *testing.T) {
	co, _ := newReadyCoordinator(t)
	require.NoError(t, co.ForceRefresh(context.Background(), "dynamic"))

	snap := co.Diagnostics()
	assert.Greater(t, snap.TotalCalls, uint64(0))
	require.Len(t, snap.Hubs, 1)
	assert.Equal(t, "closed", snap.Hubs[0].CircuitState)
	assert.Contains(t, snap.LastSuccessPerTier, "dynamic")
}
