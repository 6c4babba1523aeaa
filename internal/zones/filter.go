package zones

import "growgent/internal/types"

// Filter returns the zones passing f, preserving order. Empty type and level
// sets mean no restriction. The result is never nil.
func Filter(zones []types.RiskZone, f types.ZoneFilter) []types.RiskZone {
	out := make([]types.RiskZone, 0, len(zones))
	for _, z := range zones {
		if f.Matches(z) {
			out = append(out, z)
		}
	}
	return out
}
