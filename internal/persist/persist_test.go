package persist_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/internal/persist"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func limits() persist.Limits {
	return persist.Limits{WatchLimit: 3, WarningLimit: 6, AlarmLimit: 10, HysteresisClear: 4}
}

func TestUpdate_AlarmAtExactTick(t *testing.T) {
	c := persist.New(persist.Limits{WatchLimit: 1, WarningLimit: 1, AlarmLimit: 5, HysteresisClear: 2})
	var last types.Level
	for i := 0; i < 5; i++ {
		last = c.Update(types.LevelAlarm)
		if i < 4 && last == types.LevelAlarm {
			t.Fatalf("tick %d: promoted to ALARM too early", i+1)
		}
	}
	if last != types.LevelAlarm {
		t.Fatalf("expected ALARM exactly at tick alarm_limit, got %v", last)
	}
}

func TestUpdate_RecoversAfterHysteresisClear(t *testing.T) {
	c := persist.New(persist.Limits{WatchLimit: 1, WarningLimit: 1, AlarmLimit: 1, HysteresisClear: 3})
	c.Update(types.LevelAlarm)
	if c.Current() != types.LevelAlarm {
		t.Fatal("expected ALARM after first alarm tick")
	}
	c.Update(types.LevelNormal)
	c.Update(types.LevelNormal)
	if c.Current() != types.LevelAlarm {
		t.Fatal("should not recover before hysteresis_clear net NORMAL ticks")
	}
	c.Update(types.LevelNormal)
	if c.Current() != types.LevelNormal {
		t.Fatal("expected recovery to NORMAL at hysteresis_clear")
	}
}

func TestUpdate_WatchEvidenceClimbsToWarningThenClears(t *testing.T) {
	c := persist.New(limits())
	evidence := []types.Level{
		types.LevelWatch, types.LevelWatch, types.LevelWatch, types.LevelWatch,
		types.LevelWatch, types.LevelWatch,
		types.LevelNormal, types.LevelNormal, types.LevelNormal, types.LevelNormal,
	}
	want := []types.Level{
		types.LevelNormal, types.LevelNormal, types.LevelWatch, types.LevelWatch,
		types.LevelWatch, types.LevelWarning,
		types.LevelWarning, types.LevelWarning, types.LevelWarning, types.LevelNormal,
	}
	for i, ev := range evidence {
		got := c.Update(ev)
		if got != want[i] {
			t.Errorf("tick %d: got %v, want %v", i+1, got, want[i])
		}
	}
}

func TestUpdate_NeverDemotesExceptViaClearRule(t *testing.T) {
	c := persist.New(persist.Limits{WatchLimit: 1, WarningLimit: 1, AlarmLimit: 1, HysteresisClear: 100})
	c.Update(types.LevelAlarm)
	c.Update(types.LevelWatch) // lower instantaneous evidence, still non-NORMAL
	if c.Current() != types.LevelAlarm {
		t.Fatalf("expected state to remain ALARM, got %v", c.Current())
	}
}

func TestStore_IndependentPerKey(t *testing.T) {
	s := persist.NewStore(persist.Limits{WatchLimit: 1, WarningLimit: 1, AlarmLimit: 1, HysteresisClear: 1})
	s.Get("a1", "p1").Update(types.LevelAlarm)
	if s.Get("a2", "p1").Current() != types.LevelNormal {
		t.Fatal("expected independent state per key")
	}
}
