package calc

import (
	"math"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/store"
)

// LayerValues computes volume × density × factor for every factor key. The
// result is empty when density or volume is missing or not positive.
func LayerValues(volume float64, density *float64, factors indicator.Values) indicator.Values {
	out := indicator.Values{}
	if density == nil || *density <= 0 || volume <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return out
	}
	mass := volume * *density
	for _, k := range factors.Keys() {
		v := mass * factors[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

// EffectiveDensity returns the user density of pm when set and positive,
// otherwise the density of the matched material.
func EffectiveDensity(pm *store.ProjectMaterial, matched *material.NormalizedMaterial) *float64 {
	if pm != nil && pm.Density != nil && *pm.Density > 0 {
		return pm.Density
	}
	if matched.HasDensity() {
		return matched.Density
	}
	return nil
}
