// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"context"
	"fmt"

	"github.com/rknightion/merakimirror/internal/dashboard"
)

// telemetryFunc fetches one batch of readings for a single device family.
type telemetryFunc func(ctx context.Context, c dashboard.Client, networkID string, serials []string) (map[string]dashboard.Reading, error)

// telemetryStrategies maps each device family to its telemetry endpoint.
// Adding a new family to dashboard.AllDeviceTypes without extending this
// table is a programming error caught at startup, not a silent no-op hub.
var telemetryStrategies = map[dashboard.DeviceType]telemetryFunc{
	dashboard.DeviceTypeMT: func(ctx context.Context, c dashboard.Client, networkID string, serials []string) (map[string]dashboard.Reading, error) {
		return c.GetSensorReadings(ctx, networkID, serials)
	},
	dashboard.DeviceTypeMR: func(ctx context.Context, c dashboard.Client, networkID string, serials []string) (map[string]dashboard.Reading, error) {
		return c.GetWirelessStatuses(ctx, networkID, serials)
	},
	dashboard.DeviceTypeMS: func(ctx context.Context, c dashboard.Client, networkID string, serials []string) (map[string]dashboard.Reading, error) {
		return c.GetSwitchPortStatuses(ctx, networkID, serials)
	},
	dashboard.DeviceTypeMV: func(ctx context.Context, c dashboard.Client, networkID string, serials []string) (map[string]dashboard.Reading, error) {
		return c.GetCameraAnalytics(ctx, networkID, serials)
	},
}

func init() {
	for _, t := range dashboard.AllDeviceTypes {
		if _, ok := telemetryStrategies[t]; !ok {
			panic(fmt.Sprintf("hub: no telemetry strategy registered for device type %s", t))
		}
	}
}
