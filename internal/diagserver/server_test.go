// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package diagserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknightion/merakimirror/internal/config"
	"github.com/rknightion/merakimirror/internal/coordinator"
	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/hub"
)

// stubClient serves one MT sensor in one network.
type stubClient struct{}

func (stubClient) GetOrganization(context.Context, string) (*dashboard.Organization, error) {
	return &dashboard.Organization{ID: "123", Name: "Acme"}, nil
}

func (stubClient) GetNetworks(context.Context, string) ([]dashboard.Network, error) {
	return []dashboard.Network{{ID: "N_1", Name: "HQ"}}, nil
}

func (stubClient) GetOrganizationDevices(context.Context, string) ([]dashboard.Device, error) {
	return []dashboard.Device{{Serial: "Q1", Model: "MT10", NetworkID: "N_1", Type: dashboard.DeviceTypeMT, Status: dashboard.StatusOnline}}, nil
}

func (stubClient) GetNetworkDevices(context.Context, string) ([]dashboard.Device, error) {
	return []dashboard.Device{{Serial: "Q1", Model: "MT10", NetworkID: "N_1", Type: dashboard.DeviceTypeMT, Status: dashboard.StatusOnline}}, nil
}

func (stubClient) GetNetworkConfig(_ context.Context, networkID string, t dashboard.DeviceType) (*dashboard.ConfigSnapshot, error) {
	return &dashboard.ConfigSnapshot{NetworkID: networkID, Type: t, Settings: map[string]string{}}, nil
}

func (stubClient) GetSensorReadings(_ context.Context, _ string, serials []string) (map[string]dashboard.Reading, error) {
	out := map[string]dashboard.Reading{}
	for _, s := range serials {
		out[s] = dashboard.Reading{Serial: s, Metric: "temperature", Value: 20}
	}
	return out, nil
}

func (c stubClient) GetWirelessStatuses(ctx context.Context, n string, s []string) (map[string]dashboard.Reading, error) {
	return c.GetSensorReadings(ctx, n, s)
}

func (c stubClient) GetSwitchPortStatuses(ctx context.Context, n string, s []string) (map[string]dashboard.Reading, error) {
	return c.GetSensorReadings(ctx, n, s)
}

func (c stubClient) GetCameraAnalytics(ctx context.Context, n string, s []string) (map[string]dashboard.Reading, error) {
	return c.GetSensorReadings(ctx, n, s)
}

var _ dashboard.Client = stubClient{}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Dashboard: config.DashboardConfig{BaseURL: "https://api.example.test", APIKey: "k", OrganizationID: "123", Timeout: time.Second},
		RateLimit: config.RateLimitConfig{PerSecond: 0, Burst: 1, MaxBatchSize: 10},
		Refresh: config.RefreshConfig{
			StaticInterval: time.Hour, SemiStaticInterval: time.Hour,
			DynamicInterval: time.Hour, ConfigTTL: time.Minute,
		},
		Retry:   config.RetryConfig{Base: time.Millisecond, Cap: 2 * time.Millisecond, DiscoveryAttempts: 2, ConfigAttempts: 2, RealtimeAttempts: 2},
		Breaker: config.BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute},
	}
	org := hub.NewOrganizationHub(stubClient{}, cfg)
	t.Cleanup(org.Teardown)
	ctx := context.Background()
	require.NoError(t, org.Setup(ctx))
	require.NoError(t, org.DiscoverPartitions(ctx))
	return New(":0", coordinator.New(org))
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDiagnosticsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap hub.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Hubs, 1)
	assert.Equal(t, "N_1/MT", snap.Hubs[0].HubID)
	assert.Equal(t, "closed", snap.Hubs[0].CircuitState)
}

func TestPartitionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/partitions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "N_1/MT")
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh?tier=dynamic")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusOK, rec.Code, "no tier refreshes everything")

	rec = doRequest(t, s, http.MethodPost, "/api/v1/refresh?tier=hourly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	s := newTestServer(t)
	s.srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
