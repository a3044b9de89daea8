// Package interpretation turns a diagnosed fault into a short,
// human-readable narrative: a summary, suspected faults, a suspected
// component, and the reasoning trail an operator can audit.
//
// Grounded on original_source's
// analytics/interpretation/interpretation_engine.py: the same
// dominant-feature branch (bearing-pattern vs. general mechanical
// degradation) and the same four narrative fields, restructured as a
// stateless function over this repo's types instead of a method closing
// over a Python early_fault object.
package interpretation

import (
	"fmt"

	"github.com/solusimicro/vibralyzer/internal/types"
)

// SupportingFeature is one L1 feature cited as evidence for the narrative.
type SupportingFeature struct {
	Name       string
	Value      float64
	Unit       string
	TrendLevel types.Level
}

// Narrative is the diagnostic interpretation attached to an actionable
// point. The orchestrator publishes it for each window whose PHI state is
// actionable, from its own pipeline rather than from the L2 worker.
type Narrative struct {
	Summary            string
	SuspectedFaults    []string
	SuspectedComponent string
	SupportingFeatures []SupportingFeature
	Reasoning          []string
	Confidence         float64
}

// Interpret builds a Narrative for point from its triggering feature
// vector, trend level, and the dominant feature/confidence the early-fault
// FSM attributed to the current evidence.
func Interpret(point string, fv types.FeatureVector, trendLevel types.Level, dominantFeature string, confidence, phiValue float64, state types.StateLabel) Narrative {
	var n Narrative
	n.Confidence = confidence

	switch dominantFeature {
	case "energy_high":
		n.SupportingFeatures = []SupportingFeature{
			{Name: "energy_high", Value: fv.EnergyHigh, Unit: "g^2", TrendLevel: trendLevel},
			{Name: "envelope_rms", Value: fv.EnvelopeRMS, Unit: "g", TrendLevel: trendLevel},
		}
		n.SuspectedFaults = []string{"Bearing outer race defect", "Poor lubrication"}
		n.SuspectedComponent = fmt.Sprintf("Bearing - %s", point)
		n.Summary = "High-frequency energy dominates vibration spectrum, indicating bearing-related degradation."
	default:
		n.SuspectedFaults = []string{"General mechanical degradation"}
		n.SuspectedComponent = "Rotating assembly"
		n.Summary = "General mechanical degradation detected."
	}

	n.Reasoning = []string{
		fmt.Sprintf("Dominant feature: %s", dominantFeature),
		fmt.Sprintf("Trend level: %s", trendLevel),
		fmt.Sprintf("PHI: %.1f (%s)", phiValue, state),
	}
	return n
}
