// Package diagnostic implements the L2 diagnostic engine's fault-rule
// table, run inside an L2 worker against the feature snapshot that
// triggered the job.
//
// Grounded on original_source's diagnostic_l2/fault_rules.py and
// diagnostic_engine.py: a small ordered rule table, first match wins,
// falling back to a catch-all label. The toy placeholder conditions there
// (">"/"<" against 0 or 5) are replaced with concrete physical thresholds
// consistent with the scales package phi already normalizes against.
package diagnostic

import "github.com/solusimicro/vibralyzer/internal/types"

// Rule is one row of the fault-rule table: a severity gate plus a
// predicate over the triggering feature vector.
type Rule struct {
	FaultType string
	Severity  types.Level
	Match     func(fv types.FeatureVector) bool
}

// DefaultRules returns the corpus-grounded fault-rule table. Order matters:
// the first matching rule wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			FaultType: "BEARING_DEGRADATION",
			Severity:  types.LevelAlarm,
			Match: func(fv types.FeatureVector) bool {
				return fv.AccHFRMSg > 0.5 && fv.EnvelopeRMS > 0.1
			},
		},
		{
			FaultType: "IMBALANCE",
			Severity:  types.LevelWarning,
			Match: func(fv types.FeatureVector) bool {
				return fv.OverallVelRMSmmS > 4.5 && fv.CrestFactor < 3.0
			},
		},
		{
			FaultType: "MISALIGNMENT",
			Severity:  types.LevelWarning,
			Match: func(fv types.FeatureVector) bool {
				return fv.OverallVelRMSmmS > 4.5 && fv.AccPeakg > 1.0
			},
		},
		{
			FaultType: "LOOSENESS",
			Severity:  types.LevelAlarm,
			Match: func(fv types.FeatureVector) bool {
				return fv.CrestFactor > 4.5
			},
		},
	}
}

// GeneralHealth is the fallback fault_type when no rule matches.
const GeneralHealth = "GENERAL_HEALTH"

// Engine evaluates the fault-rule table against a triggering feature
// vector and evidence severity.
type Engine struct {
	rules []Rule
}

// New creates an Engine over the given rule table.
func New(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Diagnose returns the fault_type for the given severity and features: the
// first rule whose Severity matches state and whose Match predicate holds,
// or GeneralHealth if none match.
func (e *Engine) Diagnose(fv types.FeatureVector, state types.Level) string {
	for _, r := range e.rules {
		if r.Severity != state {
			continue
		}
		if r.Match(fv) {
			return r.FaultType
		}
	}
	return GeneralHealth
}
