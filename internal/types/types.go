// Package types holds the closed enumerations and shared records used
// across the vibralyzer pipeline, so that every stage speaks the same
// vocabulary instead of passing loose maps around.
package types

import "fmt"

// Level is the shared severity scale used by TrendRecord, PersistenceState
// and the early-fault FSM. It is intentionally distinct from StateLabel:
// Level is evidence, StateLabel is the SCADA-visible authority derived
// from PHI.
type Level int

const (
	LevelNormal Level = iota
	LevelWatch
	LevelWarning
	LevelAlarm
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelWatch:
		return "WATCH"
	case LevelWarning:
		return "WARNING"
	case LevelAlarm:
		return "ALARM"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(l))
	}
}

// ParseLevel parses a level name back into a Level. Unknown names map to
// LevelNormal — callers that need strict parsing should check the input
// against String() themselves before calling this.
func ParseLevel(s string) Level {
	switch s {
	case "WATCH":
		return LevelWatch
	case "WARNING":
		return LevelWarning
	case "ALARM":
		return LevelAlarm
	default:
		return LevelNormal
	}
}

// StateLabel is the authoritative SCADA-visible severity label, derived
// from PHI alone (see package phi). It shares the same four values as
// Level by design but is kept as its own type so the two
// tracks can never be silently confused at a call site.
type StateLabel int

const (
	StateNormal StateLabel = iota
	StateWatch
	StateWarning
	StateAlarm
)

func (s StateLabel) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateWatch:
		return "WATCH"
	case StateWarning:
		return "WARNING"
	case StateAlarm:
		return "ALARM"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsActionable reports whether the state warrants an L2 diagnostic trigger
// (WARNING or ALARM).
func (s StateLabel) IsActionable() bool {
	return s == StateWarning || s == StateAlarm
}

// MarshalJSON encodes a StateLabel as its string name, for the operator
// socket's JSON protocol.
func (s StateLabel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// MarshalJSON encodes a Level as its string name, for the operator
// socket's JSON protocol.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// FeatureKeys is the fixed, ordered key set every FeatureVector carries.
// Order matters for dominant-feature tie-breaking.
var FeatureKeys = []string{
	"acc_rms_g",
	"acc_peak_g",
	"acc_hf_rms_g",
	"crest_factor",
	"envelope_rms",
	"overall_vel_rms_mm_s",
	"energy_low",
	"energy_high",
}

// FeatureVector is one window's worth of L1 features in SI units.
// All values are finite and non-negative (crest_factor may legitimately
// be 0 when acc_rms_g is 0).
type FeatureVector struct {
	AccRMSg           float64
	AccPeakg          float64
	AccHFRMSg         float64
	CrestFactor       float64
	EnvelopeRMS       float64
	OverallVelRMSmmS  float64
	EnergyLow         float64
	EnergyHigh        float64
	Timestamp         float64
}

// Get returns the value for a named feature key, and whether the key was
// recognized. Used by the trend detector to iterate FeatureKeys uniformly.
func (f FeatureVector) Get(name string) (float64, bool) {
	switch name {
	case "acc_rms_g":
		return f.AccRMSg, true
	case "acc_peak_g":
		return f.AccPeakg, true
	case "acc_hf_rms_g":
		return f.AccHFRMSg, true
	case "crest_factor":
		return f.CrestFactor, true
	case "envelope_rms":
		return f.EnvelopeRMS, true
	case "overall_vel_rms_mm_s":
		return f.OverallVelRMSmmS, true
	case "energy_low":
		return f.EnergyLow, true
	case "energy_high":
		return f.EnergyHigh, true
	default:
		return 0, false
	}
}

// Zero reports whether every feature value is exactly 0.0, the canonical
// zero vector produced for an empty or all-zero window.
func (f FeatureVector) Zero() bool {
	return f.AccRMSg == 0 && f.AccPeakg == 0 && f.AccHFRMSg == 0 &&
		f.CrestFactor == 0 && f.EnvelopeRMS == 0 && f.OverallVelRMSmmS == 0 &&
		f.EnergyLow == 0 && f.EnergyHigh == 0
}

// TrendRecord is the trend detector's per-window output.
type TrendRecord struct {
	Level            Level
	DominantFeature  string
	MagnitudePerFeat map[string]float64
}

// FaultEvidence is the early-fault FSM's output. It is
// evidence only — never the authoritative SCADA alarm (see package phi).
type FaultEvidence struct {
	State           Level
	Confidence      float64
	DominantFeature string
	Timestamp       float64
}

// HealthEvent groups the fields of a publish_health payload. The
// orchestrator publishes egress.HealthPayload and does not use this type.
type HealthEvent struct {
	Site            string
	Asset           string
	Point           string
	PHI             float64
	State           StateLabel
	FSMState        Level
	FaultType       string
	Confidence      float64
	Timestamp       float64
}
