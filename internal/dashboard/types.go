// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package dashboard

import (
	"fmt"
	"time"
)

// Organization is the root tenant identity. It is fetched once during hub
// setup and treated as immutable for the lifetime of the process.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Network is a named subdivision of an Organization.
type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceType classifies a device by product family. The set is closed: the
// hub layer keeps an exhaustive per-type dispatch table and refuses to start
// if a type has no registered telemetry strategy.
type DeviceType string

const (
	// DeviceTypeMT is an environmental sensor (temperature, humidity, door).
	DeviceTypeMT DeviceType = "MT"
	// DeviceTypeMR is a wireless access point.
	DeviceTypeMR DeviceType = "MR"
	// DeviceTypeMS is a switch.
	DeviceTypeMS DeviceType = "MS"
	// DeviceTypeMV is a camera.
	DeviceTypeMV DeviceType = "MV"
)

// AllDeviceTypes lists every known device type. Used for exhaustiveness
// checks against the telemetry strategy table.
var AllDeviceTypes = []DeviceType{DeviceTypeMT, DeviceTypeMR, DeviceTypeMS, DeviceTypeMV}

// ParseDeviceType derives a DeviceType from a device model string
// (e.g. "MT10", "MR46", "MS120-8", "MV12W"). Returns false for models
// outside the known families.
func ParseDeviceType(model string) (DeviceType, bool) {
	if len(model) < 2 {
		return "", false
	}
	switch DeviceType(model[:2]) {
	case DeviceTypeMT:
		return DeviceTypeMT, true
	case DeviceTypeMR:
		return DeviceTypeMR, true
	case DeviceTypeMS:
		return DeviceTypeMS, true
	case DeviceTypeMV:
		return DeviceTypeMV, true
	default:
		return "", false
	}
}

// String implements fmt.Stringer.
func (t DeviceType) String() string { return string(t) }

// DeviceStatus is the last-known reachability of a device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	// StatusRemoved marks a device absent from the latest discovery response.
	// Devices are never deleted from a snapshot the consumer already holds.
	StatusRemoved DeviceStatus = "removed"
)

// Device is a physical unit inside a (network, device type) partition.
// The serial is the stable identity.
type Device struct {
	Serial       string       `json:"serial"`
	Model        string       `json:"model"`
	Name         string       `json:"name,omitempty"`
	NetworkID    string       `json:"networkId"`
	Type         DeviceType   `json:"type"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Status       DeviceStatus `json:"status"`
	LastSeen     time.Time    `json:"lastSeen"`
}

// Reading is a single telemetry sample for a device.
type Reading struct {
	Serial     string    `json:"serial"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
}

// ConfigSnapshot is the per-partition configuration state. Slow-changing,
// so the hub layer caches it with a medium TTL.
type ConfigSnapshot struct {
	NetworkID string            `json:"networkId"`
	Type      DeviceType        `json:"type"`
	Settings  map[string]string `json:"settings"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// PartitionKey identifies the (network, device type) granularity at which a
// network hub exists.
type PartitionKey struct {
	NetworkID string     `json:"networkId"`
	Type      DeviceType `json:"type"`
}

// String renders the key for logging and cache namespacing.
func (k PartitionKey) String() string {
	return fmt.Sprintf("%s/%s", k.NetworkID, k.Type)
}
