// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package dashboard

import "context"

// Client is the transport contract consumed by the hub layer. Implementations
// perform the actual network call and surface the typed errors from errors.go;
// they do NOT retry, rate limit, or cache - that is the hub pipeline's job.
//
// Paginated endpoints are fully drained by the implementation: callers always
// receive the complete result set.
type Client interface {
	// GetOrganization fetches the organization's identity.
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)

	// GetNetworks lists all networks in the organization.
	GetNetworks(ctx context.Context, orgID string) ([]Network, error)

	// GetOrganizationDevices lists every device in the organization across
	// all networks, drained across pages.
	GetOrganizationDevices(ctx context.Context, orgID string) ([]Device, error)

	// GetNetworkDevices lists the devices in one network, drained across pages.
	GetNetworkDevices(ctx context.Context, networkID string) ([]Device, error)

	// GetNetworkConfig fetches the configuration snapshot for one
	// (network, device type) partition.
	GetNetworkConfig(ctx context.Context, networkID string, t DeviceType) (*ConfigSnapshot, error)

	// Telemetry endpoints, one per device family. Each accepts up to the
	// transport's maximum per-call serial cardinality; the hub layer batches
	// larger requests.
	GetSensorReadings(ctx context.Context, networkID string, serials []string) (map[string]Reading, error)
	GetWirelessStatuses(ctx context.Context, networkID string, serials []string) (map[string]Reading, error)
	GetSwitchPortStatuses(ctx context.Context, networkID string, serials []string) (map[string]Reading, error)
	GetCameraAnalytics(ctx context.Context, networkID string, serials []string) (map[string]Reading, error)
}
