// Package assethealth aggregates per-point health into one asset-level
// verdict using a worst-case rule.
//
// Grounded on original_source's health/asset_health_index.py (the point
// with the worst severity wins). PHI in this repo is a "higher is better"
// health index rather than the original's severity score (see DESIGN.md's
// PHI-polarity decision), so the worst point here is the one with the
// LOWEST PointHealthIdx, not the highest.
package assethealth

import (
	"sync"

	"github.com/solusimicro/vibralyzer/internal/types"
)

// PointHealth is one point's latest health reading as tracked by the
// Aggregator.
type PointHealth struct {
	Point string
	PHI   float64
	State types.StateLabel
}

// AssetHealth is the worst-case aggregate across every tracked point of
// one asset.
type AssetHealth struct {
	PHI         float64
	State       types.StateLabel
	SourcePoint string
}

// Aggregator tracks the latest PointHealth per (asset, point) and
// recomputes the asset-level worst case on every update.
type Aggregator struct {
	mu     sync.Mutex
	points map[string]map[string]PointHealth // asset -> point -> health
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{points: make(map[string]map[string]PointHealth)}
}

// Update records point's latest health for asset and returns the asset's
// recomputed worst-case aggregate.
func (a *Aggregator) Update(asset, point string, phi float64, state types.StateLabel) AssetHealth {
	a.mu.Lock()
	defer a.mu.Unlock()

	byPoint, ok := a.points[asset]
	if !ok {
		byPoint = make(map[string]PointHealth)
		a.points[asset] = byPoint
	}
	byPoint[point] = PointHealth{Point: point, PHI: phi, State: state}

	var worst PointHealth
	first := true
	for _, ph := range byPoint {
		if first || ph.PHI < worst.PHI {
			worst = ph
			first = false
		}
	}
	return AssetHealth{PHI: worst.PHI, State: worst.State, SourcePoint: worst.Point}
}
