package fsm_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/internal/fsm"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func thresholds(limits map[types.Level]int) func(types.Level) int {
	return func(l types.Level) int { return limits[l] }
}

func TestUpdate_FollowsTargetWhenTrendAgrees(t *testing.T) {
	m := fsm.New(nil)
	trend := types.TrendRecord{Level: types.LevelWarning, DominantFeature: "acc_rms_g"}
	ev := m.Update(types.LevelWarning, 7, thresholds(map[types.Level]int{types.LevelWarning: 6}), trend, 123.0)
	if ev.State != types.LevelWarning {
		t.Fatalf("expected WARNING, got %v", ev.State)
	}
	if ev.DominantFeature != "acc_rms_g" {
		t.Fatalf("expected dominant feature carried through, got %q", ev.DominantFeature)
	}
	if ev.Timestamp != 123.0 {
		t.Fatalf("expected timestamp carried through, got %v", ev.Timestamp)
	}
}

func TestUpdate_StaysWhenTrendDisagrees(t *testing.T) {
	m := fsm.New(nil)
	// Target says WARNING (stale persistence counter) but the
	// instantaneous trend has already recovered to WATCH.
	trend := types.TrendRecord{Level: types.LevelWatch}
	ev := m.Update(types.LevelWarning, 7, thresholds(map[types.Level]int{types.LevelWarning: 6}), trend, 0)
	if ev.State != types.LevelNormal {
		t.Fatalf("expected machine to stay at NORMAL when trend disagrees, got %v", ev.State)
	}
}

func TestUpdate_AlwaysFollowsNormalTarget(t *testing.T) {
	m := fsm.New(nil)
	hot := types.TrendRecord{Level: types.LevelAlarm}
	m.Update(types.LevelAlarm, 10, thresholds(map[types.Level]int{types.LevelAlarm: 10}), hot, 0)
	if m.Current() != types.LevelAlarm {
		t.Fatal("setup failed: expected ALARM")
	}
	cool := types.TrendRecord{Level: types.LevelAlarm} // trend lagging, still high
	ev := m.Update(types.LevelNormal, 0, thresholds(nil), cool, 0)
	if ev.State != types.LevelNormal {
		t.Fatalf("expected NORMAL target to always be followed, got %v", ev.State)
	}
}

func TestUpdate_ConfidenceZeroAtNormal(t *testing.T) {
	m := fsm.New(nil)
	trend := types.TrendRecord{Level: types.LevelNormal}
	ev := m.Update(types.LevelNormal, 0, thresholds(nil), trend, 0)
	if ev.Confidence != 0 {
		t.Fatalf("expected zero confidence at NORMAL, got %v", ev.Confidence)
	}
}

func TestUpdate_ConfidenceScalesWithCounterOverThreshold(t *testing.T) {
	m := fsm.New(fsm.LinearConfidence())
	trend := types.TrendRecord{Level: types.LevelAlarm}
	ev := m.Update(types.LevelAlarm, 5, thresholds(map[types.Level]int{types.LevelAlarm: 10}), trend, 0)
	if ev.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", ev.Confidence)
	}
}

func TestUpdate_ConfidenceClampedAtOne(t *testing.T) {
	m := fsm.New(fsm.LinearConfidence())
	trend := types.TrendRecord{Level: types.LevelAlarm}
	ev := m.Update(types.LevelAlarm, 50, thresholds(map[types.Level]int{types.LevelAlarm: 10}), trend, 0)
	if ev.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", ev.Confidence)
	}
}

func TestStore_IndependentPerKey(t *testing.T) {
	s := fsm.NewStore(nil)
	trend := types.TrendRecord{Level: types.LevelAlarm}
	s.Get("a1", "p1").Update(types.LevelAlarm, 10, thresholds(map[types.Level]int{types.LevelAlarm: 10}), trend, 0)
	if s.Get("a2", "p1").Current() != types.LevelNormal {
		t.Fatal("expected independent state per key")
	}
}
