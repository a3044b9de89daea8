// Package heartbeat tracks monotonic pipeline-phase timestamps per point
// and produces a periodic snapshot for egress.
//
// Grounded on an AgentUptimeSeconds-style idiom (a
// background updater keeping a gauge fresh off a ticker): here each
// Tracker keeps the last wall-clock time each named phase was reached for
// a key, and Due reports whether enough time has elapsed to emit another
// snapshot for that key — the orchestrator calls this once per tick
// instead of running its own ticker goroutine per point.
package heartbeat

import (
	"sync"
	"time"
)

// Snapshot is one point's most recent phase timestamps, in Unix seconds.
type Snapshot struct {
	Site   string
	Asset  string
	Point  string
	Phases map[string]float64
	EmitAt float64
}

type pointState struct {
	mu       sync.Mutex
	phases   map[string]float64
	lastEmit time.Time
}

// Tracker holds per-(asset,point) phase timestamps and the heartbeat
// interval used to decide when a snapshot is Due.
type Tracker struct {
	interval time.Duration

	mu     sync.RWMutex
	points map[string]*pointState
}

// New creates a Tracker emitting at most once per interval per key.
func New(interval time.Duration) *Tracker {
	return &Tracker{interval: interval, points: make(map[string]*pointState)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

func (t *Tracker) getOrCreate(asset, point string) *pointState {
	k := key(asset, point)
	t.mu.RLock()
	p, ok := t.points[k]
	t.mu.RUnlock()
	if ok {
		return p
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.points[k]; ok {
		return p
	}
	p = &pointState{phases: make(map[string]float64)}
	t.points[k] = p
	return p
}

// Mark records that phase was reached for (asset,point) at now.
func (t *Tracker) Mark(asset, point, phase string, now time.Time) {
	p := t.getOrCreate(asset, point)
	p.mu.Lock()
	p.phases[phase] = float64(now.UnixNano()) / 1e9
	p.mu.Unlock()
}

// Due reports whether the heartbeat interval has elapsed since the last
// emitted snapshot for (asset,point), and if so resets the emit clock.
func (t *Tracker) Due(asset, point string, now time.Time) bool {
	p := t.getOrCreate(asset, point)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastEmit.IsZero() || now.Sub(p.lastEmit) >= t.interval {
		p.lastEmit = now
		return true
	}
	return false
}

// Snapshot returns a copy of the current phase timestamps for
// (site,asset,point), safe to publish after the caller's lock is released.
func (t *Tracker) Snapshot(site, asset, point string, now time.Time) Snapshot {
	p := t.getOrCreate(asset, point)
	p.mu.Lock()
	defer p.mu.Unlock()

	phases := make(map[string]float64, len(p.phases))
	for k, v := range p.phases {
		phases[k] = v
	}
	return Snapshot{
		Site:   site,
		Asset:  asset,
		Point:  point,
		Phases: phases,
		EmitAt: float64(now.UnixNano()) / 1e9,
	}
}
