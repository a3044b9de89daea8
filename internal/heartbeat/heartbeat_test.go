package heartbeat_test

import (
	"testing"
	"time"

	"github.com/solusimicro/vibralyzer/internal/heartbeat"
)

func TestDue_TrueOnFirstCall(t *testing.T) {
	tr := heartbeat.New(time.Second)
	if !tr.Due("a1", "p1", time.Now()) {
		t.Fatal("expected first Due call to be true")
	}
}

func TestDue_FalseBeforeIntervalElapses(t *testing.T) {
	tr := heartbeat.New(10 * time.Second)
	base := time.Now()
	tr.Due("a1", "p1", base)
	if tr.Due("a1", "p1", base.Add(2*time.Second)) {
		t.Fatal("expected Due to be false before the interval elapses")
	}
}

func TestDue_TrueAfterIntervalElapses(t *testing.T) {
	tr := heartbeat.New(10 * time.Second)
	base := time.Now()
	tr.Due("a1", "p1", base)
	if !tr.Due("a1", "p1", base.Add(11*time.Second)) {
		t.Fatal("expected Due to be true after the interval elapses")
	}
}

func TestMark_RecordsPhaseTimestamp(t *testing.T) {
	tr := heartbeat.New(time.Second)
	now := time.Now()
	tr.Mark("a1", "p1", "raw_rx", now)
	snap := tr.Snapshot("site1", "a1", "p1", now)
	if _, ok := snap.Phases["raw_rx"]; !ok {
		t.Fatal("expected raw_rx phase to be recorded")
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	tr := heartbeat.New(time.Second)
	now := time.Now()
	tr.Mark("a1", "p1", "raw_rx", now)
	snap := tr.Snapshot("site1", "a1", "p1", now)
	snap.Phases["raw_rx"] = 0

	snap2 := tr.Snapshot("site1", "a1", "p1", now)
	if snap2.Phases["raw_rx"] == 0 {
		t.Fatal("mutating a returned snapshot should not affect tracker state")
	}
}

func TestDue_IndependentPerKey(t *testing.T) {
	tr := heartbeat.New(10 * time.Second)
	base := time.Now()
	tr.Due("a1", "p1", base)
	if !tr.Due("a2", "p1", base) {
		t.Fatal("expected independent due-tracking per key")
	}
}
