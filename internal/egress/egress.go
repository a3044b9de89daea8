// Package egress defines the polymorphic publish surface:
// a capability set any transport can satisfy, so the real MQTT broker,
// a Sparkplug adapter, or an in-memory test sink are all acceptable
// implementations of the same interface.
//
// No MQTT client library is wired into this module, so the
// broker transport itself is left as an interface; the implementation
// shipped here is a structured-log sink built on zap,
// plus a test-oriented in-memory sink used by package tests elsewhere
// in this module.
package egress

import "github.com/solusimicro/vibralyzer/internal/types"

// L1Payload is the publish_l1 message body.
type L1Payload struct {
	Site      string
	Asset     string
	Point     string
	Features  types.FeatureVector
	Timestamp float64
}

// HealthPayload is the publish_health message body, published to
// `vibration/health/{site}/{asset}/{point}` with retain=true.
type HealthPayload struct {
	Site           string
	Asset          string
	Point          string
	PointHealthIdx float64
	State          types.StateLabel
	FaultType      string
	Confidence     float64
	FSMState       types.Level
	Timestamp      float64
}

// RecommendationPayload is the publish_recommendation message body
// (topic `vibration/recommendation/...`, retain=true).
type RecommendationPayload struct {
	Site       string
	Asset      string
	Point      string
	State      types.StateLabel
	FaultType  string
	Level      string
	Priority   int
	ActionCode string
	Text       string
	Timestamp  float64
}

// EarlyFaultPayload is the publish_early_fault message body (topic
// `vibration/early_fault/...`, retain=false).
type EarlyFaultPayload struct {
	Site       string
	Asset      string
	Point      string
	FSMState   types.Level
	Confidence float64
	FaultType  string
	Timestamp  float64
}

// L2Payload is a diagnostic worker's output (topic `vibration/l2/...`,
// retain=false).
type L2Payload struct {
	Site      string
	Asset     string
	Point     string
	FaultType string
	Detail    string
	Timestamp float64
}

// HeartbeatPayload is the periodic pipeline-phase snapshot.
type HeartbeatPayload struct {
	Site   string
	Asset  string
	Point  string
	Phases map[string]float64
	Emit   float64
}

// InterpretationPayload is the publish_interpretation message body: a
// human-readable diagnostic narrative attached to an actionable point.
type InterpretationPayload struct {
	Site               string
	Asset              string
	Point              string
	Summary            string
	SuspectedFaults    []string
	SuspectedComponent string
	Reasoning          []string
	Confidence         float64
	Timestamp          float64
}

// RULPayload is the publish_rul message body: a point's estimated
// remaining useful life.
type RULPayload struct {
	Site            string
	Asset           string
	Point           string
	RULDays         float64
	HasRUL          bool
	Confidence      float64
	DegradationRate float64
	Method          string
	Timestamp       float64
}

// AssetHealthPayload is the publish_asset_health message body: the
// worst-case aggregate health across an asset's points.
type AssetHealthPayload struct {
	Site        string
	Asset       string
	PHI         float64
	State       types.StateLabel
	SourcePoint string
	Timestamp   float64
}

// Publisher is the capability set the orchestrator depends on. Any
// implementation meeting this set is acceptable — the real transport, an
// in-memory test sink, a Sparkplug adapter.
type Publisher interface {
	PublishL1(L1Payload) error
	PublishHealth(HealthPayload) error
	PublishRecommendation(RecommendationPayload) error
	PublishEarlyFault(EarlyFaultPayload) error
	PublishL2(L2Payload) error
	PublishHeartbeat(HeartbeatPayload) error
	PublishInterpretation(InterpretationPayload) error
	PublishRUL(RULPayload) error
	PublishAssetHealth(AssetHealthPayload) error
}
