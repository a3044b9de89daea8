// Package persist implements the persistence checker: a
// hysteresis counter that turns instantaneous trend evidence into a
// sustained evidence level.
//
// The counter idiom mirrors an EWMA pressure accumulator shape
// (one small mutex-guarded struct per key, Update()/Current()). The
// update rule itself: a single signed counter
// climbs on any non-NORMAL evidence (regardless of which level that tick
// carried) and is checked against all three limits, so a long run of
// WATCH-only evidence can still cross the WARNING or ALARM limit. A NORMAL
// tick discards any positive climb outright and starts counting a
// recovery run instead, so hysteresis_clear counts consecutive NORMAL
// ticks rather than unwinding the whole climb one tick at a time.
package persist

import (
	"sync"

	"github.com/solusimicro/vibralyzer/internal/types"
)

// Limits holds the positive integer thresholds for one Checker.
type Limits struct {
	WatchLimit      int
	WarningLimit    int
	AlarmLimit      int
	HysteresisClear int
}

// Checker holds the mutable hysteresis state for a single key.
type Checker struct {
	mu      sync.Mutex
	limits  Limits
	counter int
	current types.Level
}

// New creates a Checker starting at NORMAL with a zero counter.
func New(limits Limits) *Checker {
	return &Checker{limits: limits, current: types.LevelNormal}
}

// Update applies one tick of evidence and returns the new sustained level.
func (c *Checker) Update(evidence types.Level) types.Level {
	c.mu.Lock()
	defer c.mu.Unlock()

	if evidence == types.LevelNormal {
		if c.counter > 0 {
			c.counter = 0
		}
		c.counter--
		if c.counter <= -c.limits.HysteresisClear {
			c.current = types.LevelNormal
			c.counter = 0
		}
		return c.current
	}

	c.counter++
	if target := c.targetFromCounter(); target > c.current {
		c.current = target
	}
	return c.current
}

// targetFromCounter returns the highest level whose limit the counter has
// reached, independent of which evidence level drove the counter there.
func (c *Checker) targetFromCounter() types.Level {
	switch {
	case c.counter >= c.limits.AlarmLimit:
		return types.LevelAlarm
	case c.counter >= c.limits.WarningLimit:
		return types.LevelWarning
	case c.counter >= c.limits.WatchLimit:
		return types.LevelWatch
	default:
		return types.LevelNormal
	}
}

// Current returns the current sustained level without mutating state.
func (c *Checker) Current() types.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Counter returns the current raw hysteresis counter (can be negative).
func (c *Checker) Counter() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// Store is a registry of one Checker per (asset,point) key, lazily created.
type Store struct {
	limits Limits

	mu       sync.RWMutex
	checkers map[string]*Checker
}

// NewStore creates a Store sharing the same Limits for every key.
func NewStore(limits Limits) *Store {
	return &Store{limits: limits, checkers: make(map[string]*Checker)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

// Get returns (creating if necessary) the Checker for (asset,point).
func (s *Store) Get(asset, point string) *Checker {
	k := key(asset, point)
	s.mu.RLock()
	c, ok := s.checkers[k]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.checkers[k]; ok {
		return c
	}
	c = New(s.limits)
	s.checkers[k] = c
	return c
}
