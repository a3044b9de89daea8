// Package fsm implements the early-fault evidence track: a
// state machine over the persistence checker's sustained level, gated by
// agreement from the instantaneous trend record so a single noisy tick
// cannot escalate state on its own.
//
// Shape follows a small struct holding the current state, transitioned by
// a single Update call; Machine holds no lock of its own (see Machine).
// Unlike an Escalate/Decay pair, this machine never decays
// itself — recovery is entirely driven by the upstream persistence
// checker returning NORMAL, which this machine always honors.
package fsm

import (
	"sync"

	"github.com/solusimicro/vibralyzer/internal/types"
)

// ConfidenceFunc maps a persistence counter and its crossed threshold to a
// confidence in [0,1]. Configured so the mapping can be tuned without
// touching the state machine itself.
type ConfidenceFunc func(counter, threshold int) float64

// LinearConfidence returns a ConfidenceFunc that grows linearly from 0 at
// counter=0 to 1.0 at counter=threshold, clamped to [0,1] beyond that.
func LinearConfidence() ConfidenceFunc {
	return func(counter, threshold int) float64 {
		if threshold <= 0 {
			return 0
		}
		c := float64(counter) / float64(threshold)
		switch {
		case c < 0:
			return 0
		case c > 1:
			return 1
		default:
			return c
		}
	}
}

// Machine holds the mutable evidence-track state for a single point. Not
// safe for concurrent use by itself — callers serialize per key the same
// way the orchestrator serializes every other per-point operation.
type Machine struct {
	current    types.Level
	confidence ConfidenceFunc
}

// New creates a Machine starting at NORMAL.
func New(confidence ConfidenceFunc) *Machine {
	if confidence == nil {
		confidence = LinearConfidence()
	}
	return &Machine{current: types.LevelNormal, confidence: confidence}
}

// Current returns the machine's current state.
func (m *Machine) Current() types.Level {
	return m.current
}

// Update applies one tick: target is the persistence checker's sustained
// level, counter is its raw hysteresis counter (for confidence scaling),
// and trend is the instantaneous trend record for this same tick.
//
// The transition to target is taken only if trend.Level >= target — this
// is the agreement gate that prevents a stale
// persistence counter (crossed on past evidence) from escalating state on
// a tick where the instantaneous trend has already recovered. When target
// is NORMAL the machine always follows it, since persistence recovery is
// itself hysteresis-gated and does not need a second gate here.
func (m *Machine) Update(target types.Level, counter int, thresholdFor func(types.Level) int, trend types.TrendRecord, timestamp float64) types.FaultEvidence {
	if target == types.LevelNormal || trend.Level >= target {
		m.current = target
	}

	conf := 0.0
	if m.current != types.LevelNormal {
		conf = m.confidence(counter, thresholdFor(m.current))
	}

	return types.FaultEvidence{
		State:           m.current,
		Confidence:      conf,
		DominantFeature: trend.DominantFeature,
		Timestamp:       timestamp,
	}
}

// Store is a registry of one Machine per (asset,point) key, lazily
// created under the same double-checked-locking idiom as the other
// per-point registries in this module.
type Store struct {
	confidence ConfidenceFunc

	mu       sync.RWMutex
	machines map[string]*Machine
}

// NewStore creates a Store sharing the same ConfidenceFunc for every key.
func NewStore(confidence ConfidenceFunc) *Store {
	return &Store{confidence: confidence, machines: make(map[string]*Machine)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

// Get returns (creating if necessary) the Machine for (asset,point).
func (s *Store) Get(asset, point string) *Machine {
	k := key(asset, point)
	s.mu.RLock()
	m, ok := s.machines[k]
	s.mu.RUnlock()
	if ok {
		return m
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.machines[k]; ok {
		return m
	}
	m = New(s.confidence)
	s.machines[k] = m
	return m
}
