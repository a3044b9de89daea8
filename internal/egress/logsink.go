package egress

import "go.uber.org/zap"

// LogSink is a Publisher that writes every payload as a structured log
// event. Useful as a standalone egress path (e.g. before the MQTT broker
// is reachable) or layered alongside the real transport for audit.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink writing through log.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) PublishL1(p L1Payload) error {
	s.log.Debug("publish_l1",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.Float64("acc_rms_g", p.Features.AccRMSg),
		zap.Float64("overall_vel_rms_mm_s", p.Features.OverallVelRMSmmS),
		zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishHealth(p HealthPayload) error {
	s.log.Info("publish_health",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.Float64("point_health_index", p.PointHealthIdx),
		zap.String("state", p.State.String()),
		zap.String("fault_type", p.FaultType),
		zap.Float64("confidence", p.Confidence),
		zap.String("fsm_state", p.FSMState.String()),
		zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishRecommendation(p RecommendationPayload) error {
	s.log.Info("publish_recommendation",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.String("state", p.State.String()), zap.String("fault_type", p.FaultType),
		zap.String("level", p.Level), zap.Int("priority", p.Priority),
		zap.String("action_code", p.ActionCode), zap.String("text", p.Text),
		zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishEarlyFault(p EarlyFaultPayload) error {
	s.log.Debug("publish_early_fault",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.String("fsm_state", p.FSMState.String()), zap.Float64("confidence", p.Confidence),
		zap.String("fault_type", p.FaultType), zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishL2(p L2Payload) error {
	s.log.Info("publish_l2",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.String("fault_type", p.FaultType), zap.String("detail", p.Detail),
		zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishHeartbeat(p HeartbeatPayload) error {
	s.log.Debug("publish_heartbeat",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.Any("phases", p.Phases), zap.Float64("emit", p.Emit),
	)
	return nil
}

func (s *LogSink) PublishInterpretation(p InterpretationPayload) error {
	s.log.Info("publish_interpretation",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.String("summary", p.Summary), zap.Strings("suspected_faults", p.SuspectedFaults),
		zap.String("suspected_component", p.SuspectedComponent),
		zap.Strings("reasoning", p.Reasoning), zap.Float64("confidence", p.Confidence),
		zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishRUL(p RULPayload) error {
	s.log.Info("publish_rul",
		zap.String("site", p.Site), zap.String("asset", p.Asset), zap.String("point", p.Point),
		zap.Float64("rul_days", p.RULDays), zap.Bool("has_rul", p.HasRUL),
		zap.Float64("confidence", p.Confidence), zap.Float64("degradation_rate", p.DegradationRate),
		zap.String("method", p.Method), zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

func (s *LogSink) PublishAssetHealth(p AssetHealthPayload) error {
	s.log.Info("publish_asset_health",
		zap.String("site", p.Site), zap.String("asset", p.Asset),
		zap.Float64("phi", p.PHI), zap.String("state", p.State.String()),
		zap.String("source_point", p.SourcePoint), zap.Float64("timestamp", p.Timestamp),
	)
	return nil
}

var _ Publisher = (*LogSink)(nil)
