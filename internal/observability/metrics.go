// Package observability — metrics.go
//
// Prometheus metrics for the vibralyzer agent.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only — no external exposure.
//
// Metric naming convention: vibralyzer_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - State labels use the string state name (4 values max).
//   - asset/point are NOT used as labels (unbounded cardinality in a
//     large deployment); per-point counts are aggregated before recording.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for vibralyzer.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Ingestion ────────────────────────────────────────────────────────────

	// PacketsReceivedTotal counts raw sample packets consumed from MQTT.
	PacketsReceivedTotal prometheus.Counter

	// PacketsDroppedTotal counts packets dropped as malformed or because
	// their per-key worker queue is full. Labels: reason (malformed, queue_full).
	PacketsDroppedTotal *prometheus.CounterVec

	// WindowsExtractedTotal counts completed feature-extraction windows.
	WindowsExtractedTotal prometheus.Counter

	// ─── L1 feature extraction ────────────────────────────────────────────────

	// FeatureExtractionLatency records per-window DSP compute latency.
	FeatureExtractionLatency prometheus.Histogram

	// ─── Baseline ─────────────────────────────────────────────────────────────

	// BaselineWarmingPoints is the current number of (asset,point) keys
	// still below min_samples on at least one tracked feature.
	BaselineWarmingPoints prometheus.Gauge

	// ─── Trend / persistence / early-fault FSM ───────────────────────────────

	// TrendEvidenceTotal counts trend evaluations, by level.
	TrendEvidenceTotal *prometheus.CounterVec

	// PersistenceStateTransitionsTotal counts sustained-level transitions.
	// Labels: from_level, to_level.
	PersistenceStateTransitionsTotal *prometheus.CounterVec

	// EarlyFaultConfidence records the FSM confidence at each update.
	EarlyFaultConfidence prometheus.Histogram

	// ─── PHI / SCADA state ────────────────────────────────────────────────────

	// PointHealthIndex is the last-computed PHI value for the most recently
	// evaluated point (a Gauge, not per-point, to bound cardinality; the
	// per-point value is carried in the egress payload instead).
	PointHealthIndex prometheus.Gauge

	// StateTransitionsTotal counts SCADA state transitions derived from PHI.
	// Labels: from_state, to_state.
	StateTransitionsTotal *prometheus.CounterVec

	// ─── L2 diagnostic queue ──────────────────────────────────────────────────

	// L2JobsProcessedTotal counts L2 diagnostic jobs that completed.
	L2JobsProcessedTotal prometheus.Counter

	// L2JobsFailedTotal counts L2 diagnostic jobs that failed (after retries
	// exhausted).
	L2JobsFailedTotal prometheus.Counter

	// L2JobsDroppedTotal counts L2 diagnostic jobs the queue refused at
	// enqueue. Labels: reason (queue_full).
	L2JobsDroppedTotal *prometheus.CounterVec

	// L2QueueDepth is the current L2 job queue depth.
	L2QueueDepth prometheus.Gauge

	// L2CircuitOpen is 1 when the L2 circuit breaker is open, else 0.
	L2CircuitOpen prometheus.Gauge

	// L2CooldownSuppressedTotal counts L2 triggers suppressed by cooldown.
	L2CooldownSuppressedTotal prometheus.Counter

	// ─── Heartbeat ────────────────────────────────────────────────────────────

	// HeartbeatsEmittedTotal counts heartbeat snapshots published.
	HeartbeatsEmittedTotal prometheus.Counter

	// ─── Storage ──────────────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// StorageBaselineRecords is the current number of persisted baseline
	// records in BoltDB.
	StorageBaselineRecords prometheus.Gauge

	// ─── Agent ────────────────────────────────────────────────────────────────

	// AgentUptimeSeconds is the number of seconds since agent start.
	AgentUptimeSeconds prometheus.Gauge

	// startTime records when the agent started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all vibralyzer Prometheus metrics.
// Returns a *Metrics with all descriptors initialised.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		PacketsReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "ingest",
			Name:      "packets_received_total",
			Help:      "Total raw sample packets consumed from the ingestion broker.",
		}),

		PacketsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "ingest",
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped, by reason.",
		}, []string{"reason"}),

		WindowsExtractedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "ingest",
			Name:      "windows_extracted_total",
			Help:      "Total completed feature-extraction windows.",
		}),

		FeatureExtractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vibralyzer",
			Subsystem: "l1_feature",
			Name:      "extraction_latency_seconds",
			Help:      "Per-window L1 DSP feature extraction latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		BaselineWarmingPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "baseline",
			Name:      "warming_points",
			Help:      "Current number of points with at least one feature still below min_samples.",
		}),

		TrendEvidenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "trend",
			Name:      "evidence_total",
			Help:      "Total trend evaluations, by level.",
		}, []string{"level"}),

		PersistenceStateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "persist",
			Name:      "state_transitions_total",
			Help:      "Total sustained-level transitions, by from_level and to_level.",
		}, []string{"from_level", "to_level"}),

		EarlyFaultConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vibralyzer",
			Subsystem: "fsm",
			Name:      "confidence",
			Help:      "Distribution of early-fault FSM confidence values.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		PointHealthIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "health",
			Name:      "point_health_index",
			Help:      "Last-computed PHI value (0-100, higher is healthier) across evaluated points.",
		}),

		StateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "health",
			Name:      "state_transitions_total",
			Help:      "Total SCADA state transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		L2JobsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "jobs_processed_total",
			Help:      "Total L2 diagnostic jobs that completed successfully.",
		}),

		L2JobsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "jobs_failed_total",
			Help:      "Total L2 diagnostic jobs that failed after exhausting retries.",
		}),

		L2JobsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "jobs_dropped_total",
			Help:      "Total L2 diagnostic jobs dropped, by reason.",
		}, []string{"reason"}),

		L2QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "queue_depth",
			Help:      "Current depth of the L2 diagnostic job queue.",
		}),

		L2CircuitOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "circuit_open",
			Help:      "1 if the L2 job queue's circuit breaker is open, else 0.",
		}),

		L2CooldownSuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "l2",
			Name:      "cooldown_suppressed_total",
			Help:      "Total L2 triggers suppressed by the cooldown tracker.",
		}),

		HeartbeatsEmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vibralyzer",
			Subsystem: "heartbeat",
			Name:      "emitted_total",
			Help:      "Total heartbeat snapshots published.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vibralyzer",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageBaselineRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "storage",
			Name:      "baseline_records",
			Help:      "Current number of persisted baseline records in BoltDB.",
		}),

		AgentUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibralyzer",
			Subsystem: "agent",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the agent started.",
		}),
	}

	// Register all metrics with the dedicated registry.
	reg.MustRegister(
		m.PacketsReceivedTotal,
		m.PacketsDroppedTotal,
		m.WindowsExtractedTotal,
		m.FeatureExtractionLatency,
		m.BaselineWarmingPoints,
		m.TrendEvidenceTotal,
		m.PersistenceStateTransitionsTotal,
		m.EarlyFaultConfidence,
		m.PointHealthIndex,
		m.StateTransitionsTotal,
		m.L2JobsProcessedTotal,
		m.L2JobsFailedTotal,
		m.L2JobsDroppedTotal,
		m.L2QueueDepth,
		m.L2CircuitOpen,
		m.L2CooldownSuppressedTotal,
		m.HeartbeatsEmittedTotal,
		m.StorageWriteLatency,
		m.StorageBaselineRecords,
		m.AgentUptimeSeconds,
		// Standard Go runtime metrics.
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails.
// The server binds to addr (e.g., "127.0.0.1:9091") and serves GET /metrics.
// Returns an error only if the server fails to start or encounters a fatal error.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start uptime updater goroutine.
	go m.updateUptime(ctx)

	// Shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the AgentUptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.AgentUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
