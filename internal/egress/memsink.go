package egress

import "sync"

// MemSink is a Publisher that records every payload in memory. Used by
// orchestrator tests in place of a real broker connection.
type MemSink struct {
	mu              sync.Mutex
	l1              []L1Payload
	health          []HealthPayload
	recommendations []RecommendationPayload
	earlyFault      []EarlyFaultPayload
	l2              []L2Payload
	heartbeats      []HeartbeatPayload
	interpretations []InterpretationPayload
	rul             []RULPayload
	assetHealth     []AssetHealthPayload
}

// NewMemSink creates an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{}
}

func (s *MemSink) PublishL1(p L1Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l1 = append(s.l1, p)
	return nil
}

func (s *MemSink) PublishHealth(p HealthPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = append(s.health, p)
	return nil
}

func (s *MemSink) PublishRecommendation(p RecommendationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = append(s.recommendations, p)
	return nil
}

func (s *MemSink) PublishEarlyFault(p EarlyFaultPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earlyFault = append(s.earlyFault, p)
	return nil
}

func (s *MemSink) PublishL2(p L2Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l2 = append(s.l2, p)
	return nil
}

func (s *MemSink) PublishHeartbeat(p HeartbeatPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, p)
	return nil
}

func (s *MemSink) PublishInterpretation(p InterpretationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interpretations = append(s.interpretations, p)
	return nil
}

func (s *MemSink) PublishRUL(p RULPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rul = append(s.rul, p)
	return nil
}

func (s *MemSink) PublishAssetHealth(p AssetHealthPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetHealth = append(s.assetHealth, p)
	return nil
}

// Health returns a copy of every HealthPayload published so far.
func (s *MemSink) Health() []HealthPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HealthPayload, len(s.health))
	copy(out, s.health)
	return out
}

// L1 returns a copy of every L1Payload published so far.
func (s *MemSink) L1() []L1Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]L1Payload, len(s.l1))
	copy(out, s.l1)
	return out
}

// Recommendations returns a copy of every RecommendationPayload published.
func (s *MemSink) Recommendations() []RecommendationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecommendationPayload, len(s.recommendations))
	copy(out, s.recommendations)
	return out
}

// EarlyFault returns a copy of every EarlyFaultPayload published.
func (s *MemSink) EarlyFault() []EarlyFaultPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EarlyFaultPayload, len(s.earlyFault))
	copy(out, s.earlyFault)
	return out
}

// L2 returns a copy of every L2Payload published.
func (s *MemSink) L2() []L2Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]L2Payload, len(s.l2))
	copy(out, s.l2)
	return out
}

// Heartbeats returns a copy of every HeartbeatPayload published.
func (s *MemSink) Heartbeats() []HeartbeatPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HeartbeatPayload, len(s.heartbeats))
	copy(out, s.heartbeats)
	return out
}

// Interpretations returns a copy of every InterpretationPayload published.
func (s *MemSink) Interpretations() []InterpretationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InterpretationPayload, len(s.interpretations))
	copy(out, s.interpretations)
	return out
}

// RUL returns a copy of every RULPayload published.
func (s *MemSink) RUL() []RULPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RULPayload, len(s.rul))
	copy(out, s.rul)
	return out
}

// AssetHealth returns a copy of every AssetHealthPayload published.
func (s *MemSink) AssetHealth() []AssetHealthPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AssetHealthPayload, len(s.assetHealth))
	copy(out, s.assetHealth)
	return out
}

var _ Publisher = (*MemSink)(nil)
