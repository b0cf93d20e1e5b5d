// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"sync"
	"time"
)

// Diagnostics accumulates operational counters for an organization hub and
// all of its network hubs. One instance is owned by the OrganizationHub and
// shared by handle with every NetworkHub it creates.
type Diagnostics struct {
	mu          sync.Mutex
	totalCalls  uint64
	failedCalls uint64
	perHub      map[string]*hubCounters
	lastSuccess map[RefreshTier]time.Time
}

type hubCounters struct {
	totalCalls  uint64
	failedCalls uint64
}

// HubDiagnostics is a point-in-time view of a single network hub's health.
type HubDiagnostics struct {
	HubID        string    `json:"hubId"`
	TotalCalls   uint64    `json:"totalCalls"`
	FailedCalls  uint64    `json:"failedCalls"`
	CircuitState string    `json:"circuitState"`
	Devices      int       `json:"devices"`
	LastSeen     time.Time `json:"lastSeen,omitempty"`
}

// Snapshot is a point-in-time view across the whole organization hub.
type Snapshot struct {
	TotalCalls         uint64               `json:"totalCalls"`
	FailedCalls        uint64               `json:"failedCalls"`
	LastSuccessPerTier map[string]time.Time `json:"lastSuccessPerTier"`
	Hubs               []HubDiagnostics     `json:"hubs"`
}

// NewDiagnostics returns an empty diagnostics accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		perHub:      make(map[string]*hubCounters),
		lastSuccess: make(map[RefreshTier]time.Time),
	}
}

// RecordCall tallies one real API call attributed to the given hub.
// Short-circuited and cache-served requests never reach here.
func (d *Diagnostics) RecordCall(hubID string, failed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalCalls++
	c, ok := d.perHub[hubID]
	if !ok {
		c = &hubCounters{}
		d.perHub[hubID] = c
	}
	c.totalCalls++
	if failed {
		d.failedCalls++
		c.failedCalls++
	}
}

// RecordTierSuccess stamps the last fully successful refresh of a tier.
func (d *Diagnostics) RecordTierSuccess(tier RefreshTier, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSuccess[tier] = at
}

// Forget drops per-hub counters for an unloaded hub.
func (d *Diagnostics) Forget(hubID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.perHub, hubID)
}

// Totals returns the organization-wide call counters.
func (d *Diagnostics) Totals() (total, failed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalCalls, d.failedCalls
}

// HubTotals returns the counters for a single hub.
func (d *Diagnostics) HubTotals(hubID string) (total, failed uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.perHub[hubID]; ok {
		return c.totalCalls, c.failedCalls
	}
	return 0, 0
}

// LastSuccess returns a copy of the per-tier last-success timestamps keyed
// by tier name.
func (d *Diagnostics) LastSuccess() map[string]time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]time.Time, len(d.lastSuccess))
	for tier, at := range d.lastSuccess {
		out[tier.String()] = at
	}
	return out
}
