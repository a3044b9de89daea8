// Package baseline implements the adaptive per-feature baseline:
// an exponentially weighted mean per (asset,point,feature), updated
// only when the caller certifies the current evidence is NORMAL.
//
// The EWMA update shares its shape with an escalation pressure
// accumulator; here the step is μ ← (1-α)·μ + α·value, generalized to one
// accumulator per tracked feature instead of a single scalar per PID, and
// gated on an explicit allow_update flag rather than being unconditional.
package baseline

import (
	"math"
	"sync"

	"github.com/solusimicro/vibralyzer/internal/types"
)

type featureState struct {
	mu    sync.Mutex
	mean  float64
	n     int
	alpha float64
}

func (f *featureState) update(value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.mean = value
	} else {
		f.mean = (1-f.alpha)*f.mean + f.alpha*value
	}
	f.n++
}

func (f *featureState) query() (mean float64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mean, f.n
}

// pointBaseline holds one per-feature accumulator set for a single
// (asset,point) key.
type pointBaseline struct {
	mu     sync.Mutex
	states map[string]*featureState
}

// Store is the registry of per-(asset,point) baselines. One Store is
// shared process-wide; each key's internal state is independently locked
// so one point's update never blocks another's.
type Store struct {
	alpha       float64
	minSamples  int

	mu     sync.RWMutex
	points map[string]*pointBaseline
}

// New creates a Store with smoothing factor alpha ∈ [0,1] and the minimum
// sample count before a baseline is no longer "warming".
func New(alpha float64, minSamples int) *Store {
	if alpha < 0 || alpha > 1 {
		panic("baseline.New: alpha must be in [0,1]")
	}
	if minSamples < 1 {
		minSamples = 1
	}
	return &Store{alpha: alpha, minSamples: minSamples, points: make(map[string]*pointBaseline)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

func (s *Store) getOrCreatePoint(k string) *pointBaseline {
	s.mu.RLock()
	p, ok := s.points[k]
	s.mu.RUnlock()
	if ok {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.points[k]; ok {
		return p
	}
	p = &pointBaseline{states: make(map[string]*featureState)}
	s.points[k] = p
	return p
}

func (p *pointBaseline) getOrCreateFeature(feature string, alpha float64) *featureState {
	p.mu.Lock()
	defer p.mu.Unlock()
	fs, ok := p.states[feature]
	if !ok {
		fs = &featureState{alpha: alpha}
		p.states[feature] = fs
	}
	return fs
}

// Update applies one EWMA step for every feature in fv, but only when
// allowUpdate is true and the value is finite. When allowUpdate is false
// the call is a complete no-op.
func (s *Store) Update(asset, point string, fv types.FeatureVector, allowUpdate bool) {
	if !allowUpdate {
		return
	}
	p := s.getOrCreatePoint(key(asset, point))
	for _, name := range types.FeatureKeys {
		v, _ := fv.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		fs := p.getOrCreateFeature(name, s.alpha)
		fs.update(v)
	}
}

// Query returns the current mean, sample count and warming status for one
// feature of one point. Returns (0, 0, true) if the point or feature has
// never been updated.
func (s *Store) Query(asset, point, feature string) (mean float64, n int, warming bool) {
	s.mu.RLock()
	p, ok := s.points[key(asset, point)]
	s.mu.RUnlock()
	if !ok {
		return 0, 0, true
	}
	p.mu.Lock()
	fs, ok := p.states[feature]
	p.mu.Unlock()
	if !ok {
		return 0, 0, true
	}
	mean, n = fs.query()
	return mean, n, n < s.minSamples
}

// Record is one (asset, point, feature) accumulator's persisted state.
type Record struct {
	Asset   string
	Point   string
	Feature string
	Mean    float64
	N       int
}

// Snapshot returns every tracked accumulator as a flat list of Records,
// suitable for persisting to disk so the agent doesn't relearn every
// baseline from scratch after a restart.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for k, p := range s.points {
		asset, point := splitKey(k)
		p.mu.Lock()
		for feature, fs := range p.states {
			mean, n := fs.query()
			out = append(out, Record{Asset: asset, Point: point, Feature: feature, Mean: mean, N: n})
		}
		p.mu.Unlock()
	}
	return out
}

// Restore seeds the store's accumulators from previously persisted
// Records. Intended to be called once at startup, before any live
// Update() calls arrive.
func (s *Store) Restore(records []Record) {
	for _, r := range records {
		p := s.getOrCreatePoint(key(r.Asset, r.Point))
		fs := p.getOrCreateFeature(r.Feature, s.alpha)
		fs.mu.Lock()
		fs.mean = r.Mean
		fs.n = r.N
		fs.mu.Unlock()
	}
}

// WarmingCount returns the number of distinct (asset,point) keys that have
// at least one tracked feature still below min_samples. Used to drive the
// observability package's BaselineWarmingPoints gauge.
func (s *Store) WarmingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.points {
		p.mu.Lock()
		warming := false
		for _, fs := range p.states {
			if _, n := fs.query(); n < s.minSamples {
				warming = true
				break
			}
		}
		p.mu.Unlock()
		if warming {
			count++
		}
	}
	return count
}

func splitKey(k string) (asset, point string) {
	for i := 0; i < len(k); i++ {
		if k[i] == '\x00' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}
