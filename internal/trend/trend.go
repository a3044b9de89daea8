// Package trend implements the trend detector: classifies
// one FeatureVector against the adaptive baseline (or fixed thresholds
// while the baseline is warming) into a TrendRecord.
//
// Shape follows a single Score() call
// composing several signals crossed with a severity threshold table
// — here the "signals" are baseline ratios per
// feature rather than a Mahalanobis distance, and the "threshold table" is
// per-feature instead of a single composite score.
package trend

import (
	"github.com/solusimicro/vibralyzer/internal/baseline"
	"github.com/solusimicro/vibralyzer/internal/types"
)

// Thresholds holds the baseline-ratio cutoffs for WATCH/WARNING/ALARM.
// Defaults used when not supplied by configuration.
type Thresholds struct {
	Watch   float64
	Warning float64
	Alarm   float64
}

// DefaultThresholds returns the documented fallback ratios.
func DefaultThresholds() Thresholds {
	return Thresholds{Watch: 1.3, Warning: 1.6, Alarm: 2.0}
}

// FixedThresholds holds absolute per-feature cutoffs used while a point's
// baseline is still warming (baseline.Store.Query reports warming=true).
// Keyed by feature name; a feature with no entry is never flagged while
// warming.
type FixedThresholds map[string]Thresholds

// Detector classifies FeatureVectors against a shared baseline Store.
type Detector struct {
	store           *baseline.Store
	ratioThresholds Thresholds
	fixed           FixedThresholds
}

// New creates a Detector backed by store, using ratioThresholds once a
// point's baseline has warmed and fixed thresholds before that.
func New(store *baseline.Store, ratioThresholds Thresholds, fixed FixedThresholds) *Detector {
	if fixed == nil {
		fixed = FixedThresholds{}
	}
	return &Detector{store: store, ratioThresholds: ratioThresholds, fixed: fixed}
}

// Update classifies fv for (asset,point) into a TrendRecord. The worst
// level across all tracked features wins; ties are broken by the lexical
// (declaration) order of types.FeatureKeys.
func (d *Detector) Update(asset, point string, fv types.FeatureVector) types.TrendRecord {
	rec := types.TrendRecord{
		Level:            types.LevelNormal,
		MagnitudePerFeat: make(map[string]float64, len(types.FeatureKeys)),
	}

	for _, name := range types.FeatureKeys {
		value, _ := fv.Get(name)
		level, magnitude := d.classifyFeature(asset, point, name, value)
		rec.MagnitudePerFeat[name] = magnitude

		if level > rec.Level {
			rec.Level = level
			rec.DominantFeature = name
		}
	}

	return rec
}

// classifyFeature returns the evidence level for one feature and a
// magnitude (ratio-to-baseline, or raw value while warming) useful for
// diagnostics and dominant-feature reporting.
func (d *Detector) classifyFeature(asset, point, feature string, value float64) (types.Level, float64) {
	mean, _, warming := d.store.Query(asset, point, feature)

	if warming {
		th, ok := d.fixed[feature]
		if !ok {
			return types.LevelNormal, value
		}
		return levelFromAbsolute(value, th), value
	}

	if mean <= 0 {
		return types.LevelNormal, 0
	}
	ratio := value / mean
	return levelFromRatio(ratio, d.ratioThresholds), ratio
}

func levelFromRatio(ratio float64, th Thresholds) types.Level {
	switch {
	case ratio >= th.Alarm:
		return types.LevelAlarm
	case ratio >= th.Warning:
		return types.LevelWarning
	case ratio >= th.Watch:
		return types.LevelWatch
	default:
		return types.LevelNormal
	}
}

func levelFromAbsolute(value float64, th Thresholds) types.Level {
	switch {
	case value >= th.Alarm:
		return types.LevelAlarm
	case value >= th.Warning:
		return types.LevelWarning
	case value >= th.Watch:
		return types.LevelWatch
	default:
		return types.LevelNormal
	}
}
