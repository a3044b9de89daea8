package orchestrator_test

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/solusimicro/vibralyzer/contrib"
	"github.com/solusimicro/vibralyzer/internal/assethealth"
	"github.com/solusimicro/vibralyzer/internal/baseline"
	"github.com/solusimicro/vibralyzer/internal/cooldown"
	"github.com/solusimicro/vibralyzer/internal/diagnostic"
	"github.com/solusimicro/vibralyzer/internal/egress"
	"github.com/solusimicro/vibralyzer/internal/features"
	"github.com/solusimicro/vibralyzer/internal/fsm"
	"github.com/solusimicro/vibralyzer/internal/heartbeat"
	"github.com/solusimicro/vibralyzer/internal/l2queue"
	"github.com/solusimicro/vibralyzer/internal/observability"
	"github.com/solusimicro/vibralyzer/internal/operator"
	"github.com/solusimicro/vibralyzer/internal/orchestrator"
	"github.com/solusimicro/vibralyzer/internal/persist"
	"github.com/solusimicro/vibralyzer/internal/phi"
	"github.com/solusimicro/vibralyzer/internal/prognostics"
	"github.com/solusimicro/vibralyzer/internal/ringbuf"
	"github.com/solusimicro/vibralyzer/internal/trend"
	"github.com/solusimicro/vibralyzer/internal/types"
)

// harness bundles a fully-wired Orchestrator plus handles to every
// collaborator a test might want to inspect.
type harness struct {
	orch  *orchestrator.Orchestrator
	sink  *egress.MemSink
	ring  *ringbuf.Registry
	l2    *l2queue.Queue
	ctx   context.Context
	stop  context.CancelFunc
}

func newHarness(t *testing.T, windowSize int) *harness {
	t.Helper()

	ring := ringbuf.New(windowSize)
	l1 := features.New(25600)
	bstore := baseline.New(0.2, 5)
	trendDet := trend.New(bstore, trend.DefaultThresholds(), nil)
	pstore := persist.NewStore(persist.Limits{WatchLimit: 3, WarningLimit: 6, AlarmLimit: 10, HysteresisClear: 4})
	fstore := fsm.NewStore(fsm.LinearConfidence())
	phiCalc := phi.New(phi.DefaultWeights(), phi.DefaultScales(), phi.DefaultCutoffs())
	diag := diagnostic.New(diagnostic.DefaultRules())
	recommend, err := contrib.GetRecommender("table")
	if err != nil {
		t.Fatalf("get recommender: %v", err)
	}
	cooldowns := cooldown.New(cooldown.Intervals{Warning: 30 * time.Second, Alarm: 10 * time.Second})
	sink := egress.NewMemSink()
	points := operator.NewMemRegistry()
	hbs := heartbeat.New(time.Minute)
	metrics := observability.NewMetrics()
	log := zap.NewNop()

	l2 := l2queue.New(l2queue.Config{
		Capacity: 16, WorkerCount: 2, MaxRetries: 1,
		FailThreshold: 3, ResetSeconds: 10, DropPolicy: l2queue.DropNew,
	}, orchestrator.NewL2Worker(diag, sink, log))

	rul := prognostics.New(7.1, prognostics.DefaultDegradationTable())
	assets := assethealth.New()

	orch := orchestrator.New(
		orchestrator.Config{RPMDefault: 1800, RecommendLang: "en", WorkerCount: 2, QueueDepth: 16},
		log, ring, l1, trendDet, bstore, pstore,
		persist.Limits{WatchLimit: 3, WarningLimit: 6, AlarmLimit: 10, HysteresisClear: 4},
		fstore, phiCalc, diag, recommend, cooldowns, l2, hbs, sink, points, metrics, rul, assets,
	)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)

	t.Cleanup(func() {
		cancel()
		l2.Stop(time.Second)
	})

	return &harness{orch: orch, sink: sink, ring: ring, l2: l2, ctx: ctx, stop: cancel}
}

func sineWave(amplitude float64, n int, fs, freq float64) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestIngest_DropsMalformedPacket(t *testing.T) {
	h := newHarness(t, 4)
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "", Point: "DE", Acceleration: []float64{1, 2}})
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A1", Point: "DE", Acceleration: nil})
	time.Sleep(20 * time.Millisecond)
	if len(h.sink.L1()) != 0 {
		t.Fatalf("expected no L1 publishes for malformed packets, got %d", len(h.sink.L1()))
	}
}

func TestIngest_SilentNoOpUntilWindowReady(t *testing.T) {
	h := newHarness(t, 4)
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A1", Point: "DE", Acceleration: []float64{0, 0}})
	time.Sleep(20 * time.Millisecond)
	if len(h.sink.L1()) != 0 {
		t.Fatalf("expected no publish before window is full, got %d", len(h.sink.L1()))
	}
}

func TestIngest_ZeroWindowProducesNormalStateAndFullPHI(t *testing.T) {
	h := newHarness(t, 4)
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A1", Point: "DE", Acceleration: []float64{0, 0, 0, 0}})
	waitFor(t, time.Second, func() bool { return len(h.sink.Health()) == 1 })

	hp := h.sink.Health()[0]
	if hp.State != types.StateNormal {
		t.Fatalf("expected NORMAL state for all-zero window, got %v", hp.State)
	}
	if hp.PointHealthIdx != 100.0 {
		t.Fatalf("expected PHI=100 for all-zero window, got %v", hp.PointHealthIdx)
	}
}

func TestIngest_LoudSinusoidTriggersActionableStateAndL2Job(t *testing.T) {
	h := newHarness(t, 4096)
	window := sineWave(0.2, 4096, 25600, 50)
	for i := range window {
		window[i] += 0.0 // broadband noise omitted; amplitude alone is enough to trip the threshold
	}
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A2", Point: "NDE", Acceleration: window})
	waitFor(t, 2*time.Second, func() bool { return len(h.sink.Health()) == 1 })

	hp := h.sink.Health()[0]
	if !boolState(hp.State) {
		t.Fatalf("expected an actionable state for a loud sinusoid, got %v (phi=%v)", hp.State, hp.PointHealthIdx)
	}

	waitFor(t, 2*time.Second, func() bool { return len(h.sink.L2()) >= 1 })
}

// boolState reports whether a StateLabel is WARNING or ALARM without
// importing the types package twice for one helper.
func boolState(s interface{ String() string }) bool {
	name := s.String()
	return name == "WARNING" || name == "ALARM"
}

func TestIngest_RecommendationPublishedEveryWindow(t *testing.T) {
	h := newHarness(t, 4)
	for i := 0; i < 3; i++ {
		h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A3", Point: "DE", Acceleration: []float64{0, 0, 0, 0}})
		waitFor(t, time.Second, func() bool { return len(h.sink.Recommendations()) == i+1 })
	}
	if len(h.sink.Recommendations()) != 3 {
		t.Fatalf("expected one recommendation per completed window, got %d", len(h.sink.Recommendations()))
	}
}

func TestIngest_DifferentKeysProcessIndependently(t *testing.T) {
	h := newHarness(t, 4)
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A4", Point: "DE", Acceleration: []float64{0, 0, 0, 0}})
	h.orch.Ingest(orchestrator.Packet{Site: "s1", Asset: "A5", Point: "DE", Acceleration: []float64{0, 0, 0, 0}})
	waitFor(t, time.Second, func() bool { return len(h.sink.Health()) == 2 })

	assets := map[string]bool{}
	for _, hp := range h.sink.Health() {
		assets[hp.Asset] = true
	}
	if !assets["A4"] || !assets["A5"] {
		t.Fatalf("expected both A4 and A5 to be evaluated independently, got %+v", h.sink.Health())
	}
}
