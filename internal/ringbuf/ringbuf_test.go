package ringbuf_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/internal/ringbuf"
)

func TestReady_FalseBeforeFull(t *testing.T) {
	r := ringbuf.New(4)
	r.Append("s1", "a1", "p1", []float64{1, 2})
	if r.Ready("s1", "a1", "p1") {
		t.Fatal("expected not ready before W samples")
	}
}

func TestReady_TrueAtExactlyW(t *testing.T) {
	r := ringbuf.New(4)
	r.Append("s1", "a1", "p1", []float64{1, 2, 3, 4})
	if !r.Ready("s1", "a1", "p1") {
		t.Fatal("expected ready at exactly W samples")
	}
}

func TestAppend_EvictsOldest(t *testing.T) {
	r := ringbuf.New(3)
	r.Append("s1", "a1", "p1", []float64{1, 2, 3})
	r.Append("s1", "a1", "p1", []float64{4})
	win := r.Snapshot("s1", "a1", "p1")
	want := []float64{2, 3, 4}
	if len(win.Values) != len(want) {
		t.Fatalf("len = %d, want %d", len(win.Values), len(want))
	}
	for i := range want {
		if win.Values[i] != want[i] {
			t.Errorf("Values[%d] = %v, want %v", i, win.Values[i], want[i])
		}
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	r := ringbuf.New(3)
	r.Append("s1", "a1", "p1", []float64{1, 2, 3})
	win := r.Snapshot("s1", "a1", "p1")
	win.Values[0] = 999
	win2 := r.Snapshot("s1", "a1", "p1")
	if win2.Values[0] == 999 {
		t.Fatal("snapshot mutation leaked into registry state")
	}
}

func TestSnapshot_UnseenKeyReturnsNil(t *testing.T) {
	r := ringbuf.New(3)
	if r.Snapshot("s1", "a1", "p1") != nil {
		t.Fatal("expected nil snapshot for unseen key")
	}
}

func TestAppend_EmptySamplesIsNoOp(t *testing.T) {
	r := ringbuf.New(3)
	r.Append("s1", "a1", "p1", nil)
	if r.TrackedKeys() != 0 {
		t.Fatal("expected no key created for empty append")
	}
}

func TestClear_EmptiesBuffer(t *testing.T) {
	r := ringbuf.New(3)
	r.Append("s1", "a1", "p1", []float64{1, 2, 3})
	r.Clear("s1", "a1", "p1")
	if r.Ready("s1", "a1", "p1") {
		t.Fatal("expected not ready after clear")
	}
}

func TestKeys_CaseSensitive(t *testing.T) {
	r := ringbuf.New(2)
	r.Append("S1", "a1", "p1", []float64{1, 2})
	r.Append("s1", "a1", "p1", []float64{3, 4})
	if r.TrackedKeys() != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", r.TrackedKeys())
	}
}

func TestSlidingWindow_ContinuesAfterSnapshot(t *testing.T) {
	r := ringbuf.New(2)
	r.Append("s1", "a1", "p1", []float64{1, 2})
	_ = r.Snapshot("s1", "a1", "p1")
	r.Append("s1", "a1", "p1", []float64{3})
	win := r.Snapshot("s1", "a1", "p1")
	if win.Values[0] != 2 || win.Values[1] != 3 {
		t.Fatalf("got %v, want [2 3]", win.Values)
	}
}
