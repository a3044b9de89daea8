// Package cooldown implements the L2 diagnostic trigger cooldown:
// a per-(asset,point) minimum re-trigger interval, keyed
// by state, that prevents a single sustained WARNING or ALARM from
// flooding the diagnostic queue with one job per orchestrator tick.
//
// Uses a wall-clock comparison style rather than a
// ticker: can_trigger is a pure "now - last >= interval" check so it
// composes cleanly with the orchestrator's own tick loop.
package cooldown

import (
	"sync"
	"time"

	"github.com/solusimicro/vibralyzer/internal/types"
)

// Intervals holds the minimum re-trigger interval per actionable state.
type Intervals struct {
	Warning time.Duration
	Alarm   time.Duration
}

func (iv Intervals) forState(state types.StateLabel) (time.Duration, bool) {
	switch state {
	case types.StateWarning:
		return iv.Warning, true
	case types.StateAlarm:
		return iv.Alarm, true
	default:
		return 0, false
	}
}

// Tracker holds the last-triggered timestamp per (asset,point) key.
type Tracker struct {
	intervals Intervals

	mu   sync.Mutex
	last map[string]time.Time
}

// New creates a Tracker with the given per-state intervals.
func New(intervals Intervals) *Tracker {
	return &Tracker{intervals: intervals, last: make(map[string]time.Time)}
}

func key(asset, point string) string {
	return asset + "\x00" + point
}

// CanTrigger reports whether an L2 job may be enqueued for (asset,point)
// at state right now. Non-actionable states (NORMAL, WATCH) always return
// false — cooldown only gates WARNING and ALARM triggers.
func (t *Tracker) CanTrigger(asset, point string, state types.StateLabel, now time.Time) bool {
	interval, gated := t.intervals.forState(state)
	if !gated {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	last, seen := t.last[key(asset, point)]
	if !seen {
		return true
	}
	return now.Sub(last) >= interval
}

// MarkTriggered records now as the last-trigger time for (asset,point).
func (t *Tracker) MarkTriggered(asset, point string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key(asset, point)] = now
}

// Clear forgets the last-trigger time for (asset,point), so the next
// CanTrigger call succeeds for WARNING or ALARM. Used by the operator
// socket's reset_cooldown command.
func (t *Tracker) Clear(asset, point string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key(asset, point))
}
