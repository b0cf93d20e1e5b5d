// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

import (
	"sort"

	"github.com/rknightion/merakimirror/internal/dashboard"
)

// partitionsOf groups an organization-wide device inventory by
// (network, device type). Devices whose model maps to no known device
// family were already dropped by the transport layer, so every device
// here lands in exactly one partition.
func partitionsOf(devices []dashboard.Device) map[dashboard.PartitionKey][]dashboard.Device {
	parts := make(map[dashboard.PartitionKey][]dashboard.Device)
	for _, d := range devices {
		key := dashboard.PartitionKey{NetworkID: d.NetworkID, Type: d.Type}
		parts[key] = append(parts[key], d)
	}
	return parts
}

// diffPartitions reconciles the currently loaded partition set against the
// desired one, producing explicit create and remove sets. Pure: it does not
// touch any hub state, which keeps repeated discovery runs trivially
// idempotent. Both result slices are sorted for deterministic iteration.
func diffPartitions(current, desired map[dashboard.PartitionKey]struct{}) (added, removed []dashboard.PartitionKey) {
	for key := range desired {
		if _, ok := current[key]; !ok {
			added = append(added, key)
		}
	}
	for key := range current {
		if _, ok := desired[key]; !ok {
			removed = append(removed, key)
		}
	}
	sortKeys(added)
	sortKeys(removed)
	return added, removed
}

func sortKeys(keys []dashboard.PartitionKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

func keySet[V any](m map[dashboard.PartitionKey]V) map[dashboard.PartitionKey]struct{} {
	set := make(map[dashboard.PartitionKey]struct{}, len(m))
	for key := range m {
		set[key] = struct{}{}
	}
	return set
}
