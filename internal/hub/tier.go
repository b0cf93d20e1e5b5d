// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package hub

// RefreshTier classifies a data fetch by volatility. Each hub operation
// belongs to exactly one tier; each tier has its own scheduler timer and its
// own cache namespace, so a dynamic-tier lookup can never be satisfied by
// static-tier data.
type RefreshTier int

const (
	// TierStatic covers topology and device discovery. Slowest cadence.
	TierStatic RefreshTier = iota
	// TierSemiStatic covers configuration snapshots. Cached with a TTL.
	TierSemiStatic
	// TierDynamic covers telemetry. Fast cadence, never cached - that is
	// a policy, not a zero TTL.
	TierDynamic

	tierCount
)

// AllTiers lists the tiers in scheduling order.
var AllTiers = []RefreshTier{TierStatic, TierSemiStatic, TierDynamic}

// String implements fmt.Stringer.
func (t RefreshTier) String() string {
	switch t {
	case TierStatic:
		return "static"
	case TierSemiStatic:
		return "semi_static"
	case TierDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Namespace returns the response-cache namespace for the tier.
func (t RefreshTier) Namespace() string { return t.String() }

// ParseTier converts a tier name back to a RefreshTier. Used by the
// forced-refresh entry points.
func ParseTier(s string) (RefreshTier, bool) {
	switch s {
	case "static":
		return TierStatic, true
	case "semi_static", "semistatic":
		return TierSemiStatic, true
	case "dynamic":
		return TierDynamic, true
	default:
		return 0, false
	}
}
