// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package coordinator is the thin polling facade the downstream platform
// consumes. It exposes typed accessors over the hub hierarchy and a forced
// refresh entry point; no transport objects cross this boundary.
package coordinator

import (
	"context"
	"fmt"

	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/hub"
)

// Coordinator fronts one organization hub.
type Coordinator struct {
	org *hub.OrganizationHub
}

// New wraps an organization hub. The hub's lifecycle (Setup, Start,
// Teardown) remains the owner's concern.
func New(org *hub.OrganizationHub) *Coordinator {
	return &Coordinator{org: org}
}

// Organization returns the mirrored tenant, or nil before setup.
func (c *Coordinator) Organization() *dashboard.Organization {
	return c.org.Organization()
}

// Networks returns the discovered networks keyed by ID.
func (c *Coordinator) Networks() map[string]dashboard.Network {
	return c.org.Networks()
}

// Partitions lists the loaded (network, device type) partitions.
func (c *Coordinator) Partitions() []dashboard.PartitionKey {
	hubs := c.org.Hubs()
	keys := make([]dashboard.PartitionKey, 0, len(hubs))
	for _, h := range hubs {
		keys = append(keys, h.Key())
	}
	return keys
}

// Devices returns the last-known device inventory for one partition.
func (c *Coordinator) Devices(key dashboard.PartitionKey) ([]dashboard.Device, error) {
	h, ok := c.org.Hub(key)
	if !ok {
		return nil, fmt.Errorf("no hub loaded for partition %s", key)
	}
	return h.Devices(), nil
}

// Telemetry fetches current readings for the given serials in one
// partition, passing through the full resilience chain. A nil serial list
// means every active device in the partition.
func (c *Coordinator) Telemetry(ctx context.Context, key dashboard.PartitionKey, serials []string) (map[string]dashboard.Reading, error) {
	h, ok := c.org.Hub(key)
	if !ok {
		return nil, fmt.Errorf("no hub loaded for partition %s", key)
	}
	return h.FetchTelemetry(ctx, serials)
}

// Configuration returns the partition's configuration snapshot, served from
// cache within its TTL.
func (c *Coordinator) Configuration(ctx context.Context, key dashboard.PartitionKey) (*dashboard.ConfigSnapshot, error) {
	h, ok := c.org.Hub(key)
	if !ok {
		return nil, fmt.Errorf("no hub loaded for partition %s", key)
	}
	return h.FetchConfiguration(ctx)
}

// Diagnostics returns the organization-wide health snapshot.
func (c *Coordinator) Diagnostics() hub.Snapshot {
	return c.org.Diagnostics()
}

// ForceRefresh refreshes one named tier, or all tiers when tierName is
// empty. The refresh bypasses timers and cached responses but not the
// resilience chain.
func (c *Coordinator) ForceRefresh(ctx context.Context, tierName string) error {
	if tierName == "" {
		return c.org.ForceRefresh(ctx, nil)
	}
	tier, ok := hub.ParseTier(tierName)
	if !ok {
		return fmt.Errorf("unknown refresh tier %q", tierName)
	}
	return c.org.ForceRefresh(ctx, &tier)
}
