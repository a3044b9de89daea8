// Package orchestrator wires the per-packet pipeline: ring
// buffer → L1 features → trend/baseline/persistence/fsm in parallel with
// PHI → health/recommendation egress → cooldown-gated L2 enqueue →
// heartbeat snapshot.
//
// Per-key serialization works by hashing
// (site,asset,point) with FNV-1a into a fixed-size slice of worker
// goroutines, each fed by its own channel, generalizing a
// single-queue-plus-worker shape to N queues. A packet's
// key always lands on the same worker, so per-point state (ring buffer,
// baseline, persistence, FSM) never needs its own lock — the channel
// assignment is the lock. The orchestrator never holds anything across an
// egress call: payloads are built, the worker moves on, then Publisher is
// invoked synchronously from within that same worker iteration (there is
// no shared state left to protect by that point).
package orchestrator

import (
	"context"
	"hash/fnv"
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
	"github.com/solusimicro/vibralyzer/internal/interpretation"
	"github.com/solusimicro/vibralyzer/internal/l2queue"
	"github.com/solusimicro/vibralyzer/internal/observability"
	"github.com/solusimicro/vibralyzer/internal/operator"
	"github.com/solusimicro/vibralyzer/internal/persist"
	"github.com/solusimicro/vibralyzer/internal/phi"
	"github.com/solusimicro/vibralyzer/internal/prognostics"
	"github.com/solusimicro/vibralyzer/internal/ringbuf"
	"github.com/solusimicro/vibralyzer/internal/trend"
	"github.com/solusimicro/vibralyzer/internal/types"
)

// Packet is one raw ingress sample batch.
type Packet = ringbuf.SamplePacket

// thresholdLimits bundles the persistence thresholds needed both to drive
// persist.Checker and to scale fsm.Machine's confidence function.
type thresholdLimits struct {
	watch, warning, alarm int
}

func (t thresholdLimits) forLevel(l types.Level) int {
	switch l {
	case types.LevelWatch:
		return t.watch
	case types.LevelWarning:
		return t.warning
	case types.LevelAlarm:
		return t.alarm
	default:
		return t.alarm
	}
}

// Config holds every tunable the orchestrator needs that isn't owned by one
// of its collaborators directly.
type Config struct {
	RPMDefault    float64
	RecommendLang string
	WorkerCount   int
	QueueDepth    int
}

// Orchestrator wires every pipeline stage together and owns the per-key
// worker pool that serializes ingress processing.
type Orchestrator struct {
	cfg Config
	log *zap.Logger

	ring       *ringbuf.Registry
	l1         *features.Pipeline
	trendDet   *trend.Detector
	baselines  *baseline.Store
	persistence *persist.Store
	limits     thresholdLimits
	fsms       *fsm.Store
	phiCalc    *phi.Computer
	diag       *diagnostic.Engine
	recommend  contrib.Recommender
	cooldowns  *cooldown.Tracker
	l2         *l2queue.Queue
	heartbeats *heartbeat.Tracker
	publisher  egress.Publisher
	points     *operator.MemRegistry
	metrics    *observability.Metrics
	rul        *prognostics.Estimator
	assets     *assethealth.Aggregator

	workers []chan Packet
}

// registryAdapter wraps operator.MemRegistry so its ResetCooldown command
// actually clears the orchestrator's cooldown.Tracker, instead of the
// registry's own no-op stub (it has no reference to the tracker itself).
type registryAdapter struct {
	*operator.MemRegistry
	cooldowns *cooldown.Tracker
}

func (a registryAdapter) ResetCooldown(asset, point string, state types.StateLabel) {
	a.cooldowns.Clear(asset, point)
}

// PointRegistry returns the operator.PointRegistry this orchestrator feeds,
// wired so reset_cooldown reaches the real cooldown tracker. Pass this to
// operator.NewServer.
func (o *Orchestrator) PointRegistry() operator.PointRegistry {
	return registryAdapter{MemRegistry: o.points, cooldowns: o.cooldowns}
}

// New assembles an Orchestrator. l2 is expected to already be constructed
// with a WorkerFunc built by NewL2Worker (see below) so that diagnostic
// jobs close over the same diag/recommend/publisher instances used here.
func New(
	cfg Config,
	log *zap.Logger,
	ring *ringbuf.Registry,
	l1 *features.Pipeline,
	trendDet *trend.Detector,
	baselines *baseline.Store,
	persistence *persist.Store,
	persistLimits persist.Limits,
	fsms *fsm.Store,
	phiCalc *phi.Computer,
	diag *diagnostic.Engine,
	recommend contrib.Recommender,
	cooldowns *cooldown.Tracker,
	l2 *l2queue.Queue,
	heartbeats *heartbeat.Tracker,
	publisher egress.Publisher,
	points *operator.MemRegistry,
	metrics *observability.Metrics,
	rul *prognostics.Estimator,
	assets *assethealth.Aggregator,
) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 8
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}

	o := &Orchestrator{
		cfg:         cfg,
		log:         log,
		ring:        ring,
		l1:          l1,
		trendDet:    trendDet,
		baselines:   baselines,
		persistence: persistence,
		limits: thresholdLimits{
			watch:   persistLimits.WatchLimit,
			warning: persistLimits.WarningLimit,
			alarm:   persistLimits.AlarmLimit,
		},
		fsms:       fsms,
		phiCalc:    phiCalc,
		diag:       diag,
		recommend:  recommend,
		cooldowns:  cooldowns,
		l2:         l2,
		heartbeats: heartbeats,
		publisher:  publisher,
		points:     points,
		metrics:    metrics,
		rul:        rul,
		assets:     assets,
		workers:    make([]chan Packet, cfg.WorkerCount),
	}
	for i := range o.workers {
		o.workers[i] = make(chan Packet, cfg.QueueDepth)
	}
	return o
}

// Start launches the per-key worker goroutines and the background stats
// loop. It returns once all workers have been spawned; they run until ctx
// is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	for i, ch := range o.workers {
		go o.runWorker(ctx, i, ch)
	}
	go o.statsLoop(ctx)
}

// statsLoop periodically mirrors the L2 queue's own counters into the
// Prometheus gauges/counters, the same way observability.updateUptime
// keeps AgentUptimeSeconds fresh off a ticker rather than updating it
// inline on every packet.
func (o *Orchestrator) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastProcessed, lastFailed uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.metrics.BaselineWarmingPoints.Set(float64(o.baselines.WarmingCount()))

			stats := o.l2.Snapshot()
			o.metrics.L2QueueDepth.Set(float64(stats.QueueSize))
			if stats.CircuitOpen {
				o.metrics.L2CircuitOpen.Set(1)
			} else {
				o.metrics.L2CircuitOpen.Set(0)
			}
			if stats.Processed > lastProcessed {
				o.metrics.L2JobsProcessedTotal.Add(float64(stats.Processed - lastProcessed))
				lastProcessed = stats.Processed
			}
			if stats.Failed > lastFailed {
				o.metrics.L2JobsFailedTotal.Add(float64(stats.Failed - lastFailed))
				lastFailed = stats.Failed
			}
		}
	}
}

// Ingest validates and dispatches one raw packet. It is safe to call from
// any goroutine (a single ingress thread feeds it); the
// packet is handed off to the worker slot its key hashes to, never
// processed inline.
func (o *Orchestrator) Ingest(pkt Packet) {
	if pkt.Asset == "" || pkt.Point == "" || len(pkt.Acceleration) == 0 {
		o.metrics.PacketsDroppedTotal.WithLabelValues("malformed").Inc()
		o.log.Debug("dropping malformed packet", zap.String("error_kind", "ingest_malformed"),
			zap.String("asset", pkt.Asset), zap.String("point", pkt.Point))
		return
	}
	if pkt.Site == "" {
		pkt.Site = "default"
	}
	if pkt.RPM == nil {
		o.log.Warn("rpm missing, falling back to configured default",
			zap.String("error_kind", "topology_missing"),
			zap.String("asset", pkt.Asset), zap.String("point", pkt.Point),
			zap.Float64("rpm_default", o.cfg.RPMDefault))
	}

	o.metrics.PacketsReceivedTotal.Inc()
	idx := workerIndex(pkt.Site, pkt.Asset, pkt.Point, len(o.workers))
	select {
	case o.workers[idx] <- pkt:
	default:
		o.metrics.PacketsDroppedTotal.WithLabelValues("queue_full").Inc()
		o.log.Debug("per-key worker queue full, dropping packet",
			zap.String("error_kind", "queue_full"),
			zap.String("asset", pkt.Asset), zap.String("point", pkt.Point))
	}
}

// workerIndex hashes (site,asset,point) with FNV-1a into [0,n).
func workerIndex(site, asset, point string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(site))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(asset))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(point))
	return int(h.Sum32()) % n
}

func (o *Orchestrator) runWorker(ctx context.Context, idx int, ch chan Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-ch:
			if !ok {
				return
			}
			o.process(pkt)
		}
	}
}

// process runs the full per-packet pipeline.
// It is only ever called from the single worker goroutine owning this
// packet's key, so the per-point collaborators below need no locking of
// their own beyond what they already do internally for cross-key safety.
func (o *Orchestrator) process(pkt Packet) {
	now := time.Now()
	site, asset, point := pkt.Site, pkt.Asset, pkt.Point

	// 1. mark heartbeat raw_rx; ring.append; return if not ready.
	o.heartbeats.Mark(asset, point, "raw_rx", now)
	o.ring.Append(site, asset, point, pkt.Acceleration)
	if !o.ring.Ready(site, asset, point) {
		return
	}

	// 2. snapshot window; mark window_ready.
	window := o.ring.Snapshot(site, asset, point)
	o.heartbeats.Mark(asset, point, "window_ready", now)
	o.metrics.WindowsExtractedTotal.Inc()

	// 3. features = L1(window); mark l1_exec; emit publish_l1.
	start := time.Now()
	fv := o.l1.Compute(window.Values)
	o.metrics.FeatureExtractionLatency.Observe(time.Since(start).Seconds())
	o.heartbeats.Mark(asset, point, "l1_exec", now)
	if err := o.publisher.PublishL1(egress.L1Payload{
		Site: site, Asset: asset, Point: point, Features: fv, Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_l1 failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}

	// 4. trend = trend.update; baseline.update gated on trend.level==NORMAL;
	//    persistence.update; fsm.update.
	trendRec := o.trendDet.Update(asset, point, fv)
	o.metrics.TrendEvidenceTotal.WithLabelValues(trendRec.Level.String()).Inc()

	allowUpdate := trendRec.Level == types.LevelNormal
	o.baselines.Update(asset, point, fv, allowUpdate)

	checker := o.persistence.Get(asset, point)
	fromLevel := checker.Current()
	sustained := checker.Update(trendRec.Level)
	if sustained != fromLevel {
		o.metrics.PersistenceStateTransitionsTotal.WithLabelValues(fromLevel.String(), sustained.String()).Inc()
	}

	machine := o.fsms.Get(asset, point)
	evidence := machine.Update(sustained, checker.Counter(), o.limits.forLevel, trendRec, unixSeconds(now))
	o.metrics.EarlyFaultConfidence.Observe(evidence.Confidence)

	// 5. phi = compute_phi; state = phi_to_state.
	phiValue := o.phiCalc.Compute(fv.OverallVelRMSmmS, fv.EnvelopeRMS, fv.CrestFactor)
	state := o.phiCalc.ToState(phiValue)
	o.metrics.PointHealthIndex.Set(phiValue)

	prevStatus, hadPrev := o.points.Status(asset, point)
	if !hadPrev {
		prevStatus.State = state
	}
	if prevStatus.State != state {
		o.metrics.StateTransitionsTotal.WithLabelValues(prevStatus.State.String(), state.String()).Inc()
	}

	// fault_type is only meaningful once PHI itself says the point is
	// actionable: the FSM alone never sets it.
	faultType := ""
	if state.IsActionable() {
		faultType = o.diag.Diagnose(fv, evidence.State)
	}

	o.points.Update(asset, point, phiValue, state, evidence.State)
	reported := o.points.ReportedState(asset, point, state)

	// 6. emit publish_health.
	if err := o.publisher.PublishHealth(egress.HealthPayload{
		Site: site, Asset: asset, Point: point,
		PointHealthIdx: phiValue, State: reported, FaultType: faultType,
		Confidence: evidence.Confidence, FSMState: evidence.State, Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_health failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}
	if err := o.publisher.PublishEarlyFault(egress.EarlyFaultPayload{
		Site: site, Asset: asset, Point: point,
		FSMState: evidence.State, Confidence: evidence.Confidence, FaultType: faultType, Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_early_fault failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}

	// Asset-level worst-case aggregation and RUL projection run every
	// window regardless of actionability, the same as publish_health.
	assetHealth := o.assets.Update(asset, point, phiValue, reported)
	if err := o.publisher.PublishAssetHealth(egress.AssetHealthPayload{
		Site: site, Asset: asset, PHI: assetHealth.PHI, State: assetHealth.State,
		SourcePoint: assetHealth.SourcePoint, Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_asset_health failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}

	rulEstimate := o.rul.Estimate(asset, point, unixSeconds(now), fv.OverallVelRMSmmS, faultType, evidence.State)
	if err := o.publisher.PublishRUL(egress.RULPayload{
		Site: site, Asset: asset, Point: point,
		RULDays: rulEstimate.RULDays, HasRUL: rulEstimate.HasRUL, Confidence: rulEstimate.Confidence,
		DegradationRate: rulEstimate.DegradationRate, Method: rulEstimate.Method, Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_rul failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}

	// Interpretation narrative only makes sense once there is an
	// actionable diagnosis to explain.
	if state.IsActionable() {
		narrative := interpretation.Interpret(point, fv, trendRec.Level, evidence.DominantFeature,
			evidence.Confidence, phiValue, reported)
		if err := o.publisher.PublishInterpretation(egress.InterpretationPayload{
			Site: site, Asset: asset, Point: point,
			Summary: narrative.Summary, SuspectedFaults: narrative.SuspectedFaults,
			SuspectedComponent: narrative.SuspectedComponent, Reasoning: narrative.Reasoning,
			Confidence: narrative.Confidence, Timestamp: unixSeconds(now),
		}); err != nil {
			o.log.Warn("publish_interpretation failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
		}
	}

	// 7. if state actionable and cooldown permits: enqueue L2 job; mark triggered.
	// Gated on the evidence-derived state, not the operator-reported one —
	// a pin changes what SCADA sees, never what the diagnostic track does.
	if state.IsActionable() {
		if o.cooldowns.CanTrigger(asset, point, state, now) {
			accepted := o.l2.Enqueue(l2queue.Job{
				Site: site, Asset: asset, Point: point,
				Payload: l2JobPayload{FeatureVector: fv, State: evidence.State, Timestamp: unixSeconds(now)},
			})
			if accepted {
				o.cooldowns.MarkTriggered(asset, point, now)
			} else {
				o.metrics.L2JobsDroppedTotal.WithLabelValues("queue_full").Inc()
			}
		} else {
			o.metrics.L2CooldownSuppressedTotal.Inc()
		}
	}

	// 8. emit publish_recommendation built from the recommendation port.
	rec := o.recommend.Recommend(reported, faultType, evidence.Confidence, phiValue, o.cfg.RecommendLang)
	if err := o.publisher.PublishRecommendation(egress.RecommendationPayload{
		Site: site, Asset: asset, Point: point, State: reported, FaultType: faultType,
		Level: rec.Level, Priority: rec.Priority, ActionCode: rec.ActionCode, Text: rec.Text,
		Timestamp: unixSeconds(now),
	}); err != nil {
		o.log.Warn("publish_recommendation failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
	}

	// 9. if wall-clock elapsed >= heartbeat interval, emit heartbeat snapshot.
	if o.heartbeats.Due(asset, point, now) {
		snap := o.heartbeats.Snapshot(site, asset, point, now)
		if err := o.publisher.PublishHeartbeat(egress.HeartbeatPayload{
			Site: snap.Site, Asset: snap.Asset, Point: snap.Point, Phases: snap.Phases, Emit: snap.EmitAt,
		}); err != nil {
			o.log.Warn("publish_heartbeat failed", zap.String("error_kind", "egress_failure"), zap.Error(err))
		}
		o.metrics.HeartbeatsEmittedTotal.Inc()
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// l2JobPayload is the closure-free data an L2 worker needs to diagnose and
// publish; see NewL2Worker.
type l2JobPayload struct {
	FeatureVector types.FeatureVector
	State         types.Level
	Timestamp     float64
}

// NewL2Worker builds the l2queue.WorkerFunc the caller passes to
// l2queue.New. It is a free function rather than an Orchestrator method
// because the queue itself must exist before the Orchestrator that
// references it can be constructed (see cmd/vibralyzer/main.go).
func NewL2Worker(diag *diagnostic.Engine, publisher egress.Publisher, log *zap.Logger) l2queue.WorkerFunc {
	return func(ctx context.Context, job l2queue.Job) error {
		payload, ok := job.Payload.(l2JobPayload)
		if !ok {
			log.Error("l2 job carried unexpected payload type",
				zap.String("error_kind", "worker_exception"))
			return nil
		}
		faultType := diag.Diagnose(payload.FeatureVector, payload.State)
		return publisher.PublishL2(egress.L2Payload{
			Site: job.Site, Asset: job.Asset, Point: job.Point,
			FaultType: faultType, Detail: payload.State.String(), Timestamp: payload.Timestamp,
		})
	}
}
