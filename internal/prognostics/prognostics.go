// Package prognostics estimates per-point remaining useful life (RUL) from
// the velocity RMS trend, falling back to a static fault-type degradation
// table when too little history has accumulated for a trustworthy
// regression.
//
// Grounded on original_source's analytics/prognostics/rul_estimator.py
// (minimum-six-sample linear extrapolation against an ISO velocity limit)
// and degradation_model.py (static rate/RUL table keyed by fault type and
// severity) — merged into one estimator here, since the table is only ever
// consulted as the regression's fallback, not as a separately invoked
// component.
package prognostics

import (
	"sync"

	"github.com/solusimicro/vibralyzer/internal/types"
)

const (
	minHistory = 6
	maxHistory = 30
)

// DegradationEntry is one static fallback row: the expected daily
// degradation rate and a canned RUL estimate for a fault type at a given
// severity.
type DegradationEntry struct {
	RatePerDay float64
	RULDays    float64
}

// DegradationTable maps fault_type -> severity -> DegradationEntry.
type DegradationTable map[string]map[types.Level]DegradationEntry

// DefaultDegradationTable is the corpus-grounded static fallback table.
func DefaultDegradationTable() DegradationTable {
	return DegradationTable{
		"BEARING_DEGRADATION": {
			types.LevelWarning: {RatePerDay: 0.05, RULDays: 60},
			types.LevelAlarm:   {RatePerDay: 0.12, RULDays: 15},
		},
		"IMBALANCE": {
			types.LevelWarning: {RatePerDay: 0.02, RULDays: 120},
		},
		"MISALIGNMENT": {
			types.LevelWarning: {RatePerDay: 0.03, RULDays: 90},
		},
		"LOOSENESS": {
			types.LevelAlarm: {RatePerDay: 0.15, RULDays: 10},
		},
		"GENERAL_HEALTH": {
			types.LevelNormal: {RatePerDay: 0.0, RULDays: 9999},
		},
	}
}

// Estimate is one point's RUL estimate.
type Estimate struct {
	RULDays         float64
	HasRUL          bool
	Confidence      float64
	DegradationRate float64
	Method          string // linear_extrapolation, stable_trend, table_lookup, insufficient_data
}

type sample struct {
	timestamp float64
	value     float64
}

// Estimator tracks a bounded per-(asset,point) velocity history and
// extrapolates toward limitMmS, the ISO velocity alarm limit a point's
// overall velocity RMS is projected to cross.
type Estimator struct {
	limitMmS float64
	table    DegradationTable

	mu      sync.Mutex
	history map[string][]sample
}

// New creates an Estimator.
func New(limitMmS float64, table DegradationTable) *Estimator {
	return &Estimator{limitMmS: limitMmS, table: table, history: make(map[string][]sample)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

// Estimate records one new (timestamp, velocity) observation for
// (asset, point) and returns the current RUL estimate. faultType and
// severity are only consulted when history is too short for regression.
func (e *Estimator) Estimate(asset, point string, timestamp, velocityMmS float64, faultType string, severity types.Level) Estimate {
	e.mu.Lock()
	k := key(asset, point)
	hist := append(e.history[k], sample{timestamp: timestamp, value: velocityMmS})
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	e.history[k] = hist
	histCopy := make([]sample, len(hist))
	copy(histCopy, hist)
	e.mu.Unlock()

	n := len(histCopy)
	if n < minHistory {
		return e.fallback(faultType, severity)
	}

	slope, _ := linearFit(histCopy)
	if slope <= 0 {
		return Estimate{Confidence: 0.4, DegradationRate: slope, Method: "stable_trend"}
	}

	last := histCopy[n-1].value
	remaining := (e.limitMmS - last) / slope
	if remaining < 0 {
		remaining = 0
	}
	confidence := float64(n) / float64(maxHistory)
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Estimate{
		RULDays: remaining, HasRUL: true, Confidence: confidence,
		DegradationRate: slope, Method: "linear_extrapolation",
	}
}

// fallback consults the static degradation table when regression can't run
// yet. A miss returns the zero Estimate with Method "insufficient_data".
func (e *Estimator) fallback(faultType string, severity types.Level) Estimate {
	if bySeverity, ok := e.table[faultType]; ok {
		if entry, ok := bySeverity[severity]; ok {
			return Estimate{RULDays: entry.RULDays, HasRUL: true, DegradationRate: entry.RatePerDay, Method: "table_lookup"}
		}
	}
	return Estimate{Method: "insufficient_data"}
}

// linearFit computes the least-squares slope and intercept of value vs.
// timestamp, with timestamp normalized to days since the first sample —
// the same normalization rul_estimator.py applies before np.polyfit.
func linearFit(hist []sample) (slope, intercept float64) {
	n := float64(len(hist))
	t0 := hist[0].timestamp
	var sumT, sumV, sumTT, sumTV float64
	for _, s := range hist {
		td := (s.timestamp - t0) / 86400.0
		sumT += td
		sumV += s.value
		sumTT += td * td
		sumTV += td * s.value
	}
	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return 0, sumV / n
	}
	slope = (n*sumTV - sumT*sumV) / denom
	intercept = (sumV - slope*sumT) / n
	return slope, intercept
}
