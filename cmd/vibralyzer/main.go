// Package main — cmd/vibralyzer/main.go
//
// VIBRALYZER agent entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/vibralyzer/config.yaml.
//  2. Initialise structured logger (zap, JSON format).
//  3. Open BoltDB storage and load persisted baselines.
//  4. Prune stale ledger entries.
//  5. Start Prometheus metrics server (127.0.0.1:9091).
//  6. Wire every pipeline collaborator and start the orchestrator's
//     per-key worker pool.
//  7. Start the operator Unix-socket control server (if enabled).
//  8. Start the ingress listener.
//  9. Register SIGHUP handler that re-reads and re-validates the config
//     (logged only; changes take effect after a restart).
// 10. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (propagates to all goroutines).
//  2. Stop the L2 queue, draining in-flight jobs (max 5s).
//  3. Flush baseline state to BoltDB.
//  4. Close BoltDB.
//  5. Flush logger.
//  6. Exit 0.
//
// On config validation failure: exit 1 immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solusimicro/vibralyzer/contrib"
	"github.com/solusimicro/vibralyzer/internal/assethealth"
	"github.com/solusimicro/vibralyzer/internal/baseline"
	"github.com/solusimicro/vibralyzer/internal/config"
	"github.com/solusimicro/vibralyzer/internal/cooldown"
	"github.com/solusimicro/vibralyzer/internal/diagnostic"
	"github.com/solusimicro/vibralyzer/internal/egress"
	"github.com/solusimicro/vibralyzer/internal/features"
	"github.com/solusimicro/vibralyzer/internal/fsm"
	"github.com/solusimicro/vibralyzer/internal/heartbeat"
	"github.com/solusimicro/vibralyzer/internal/ingress"
	"github.com/solusimicro/vibralyzer/internal/l2queue"
	"github.com/solusimicro/vibralyzer/internal/observability"
	"github.com/solusimicro/vibralyzer/internal/operator"
	"github.com/solusimicro/vibralyzer/internal/orchestrator"
	"github.com/solusimicro/vibralyzer/internal/persist"
	"github.com/solusimicro/vibralyzer/internal/phi"
	"github.com/solusimicro/vibralyzer/internal/prognostics"
	"github.com/solusimicro/vibralyzer/internal/ringbuf"
	"github.com/solusimicro/vibralyzer/internal/storage"
	"github.com/solusimicro/vibralyzer/internal/trend"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "/etc/vibralyzer/config.yaml", "Path to config.yaml")
	ingressAddr := flag.String("ingress-addr", "0.0.0.0:9000", "Newline-delimited JSON sample ingress listen address")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("vibralyzer %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 1: Load config ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	// ── Step 2: Initialise logger ─────────────────────────────────────────────
	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("vibralyzer starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("node_id", cfg.NodeID),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Step 3: Open BoltDB, load persisted baselines ────────────────────────
	db, err := storage.Open(cfg.Storage.DBPath, 0)
	if err != nil {
		log.Fatal("BoltDB open failed", zap.Error(err), zap.String("path", cfg.Storage.DBPath))
	}
	defer db.Close() //nolint:errcheck
	log.Info("BoltDB opened", zap.String("path", cfg.Storage.DBPath))

	records, err := db.LoadAllBaselines()
	if err != nil {
		log.Warn("baseline load failed, starting cold", zap.Error(err))
	}

	// ── Step 4: Prune stale ledger entries ────────────────────────────────────
	pruned, err := db.PruneOldLedgerEntries()
	if err != nil {
		log.Warn("ledger pruning failed", zap.Error(err))
	} else {
		log.Info("ledger pruned", zap.Int("deleted", pruned))
	}

	// ── Step 5: Prometheus metrics ─────────────────────────────────────────────
	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	// ── Step 6: Wire pipeline collaborators ───────────────────────────────────
	ring := ringbuf.New(cfg.Raw.WindowSize)
	l1 := features.New(cfg.L1Feature.SamplingRate)

	baselines := baseline.New(cfg.Baseline.Alpha, cfg.Baseline.MinSamples)
	baselines.Restore(restoreRecords(records))
	log.Info("baselines restored", zap.Int("accumulators", len(records)))

	trendDet := trend.New(baselines, trend.DefaultThresholds(), nil)

	persistLimits := persist.Limits{
		WatchLimit:      cfg.EarlyFault.WatchPersistence,
		WarningLimit:    cfg.EarlyFault.WarningPersistence,
		AlarmLimit:      cfg.EarlyFault.AlarmPersistence,
		HysteresisClear: cfg.EarlyFault.HysteresisClear,
	}
	persistence := persist.NewStore(persistLimits)
	fsms := fsm.NewStore(fsm.LinearConfidence())

	phiCalc := phi.New(
		phi.Weights{Velocity: cfg.Health.WeightVelocity, Envelope: cfg.Health.WeightEnvelope, Crest: cfg.Health.WeightCrest},
		phi.Scales{
			VelocityFullScale: cfg.Health.VelocityFullScale,
			EnvelopeFullScale: cfg.Health.EnvelopeFullScale,
			CrestFullScale:    cfg.Health.CrestFullScale,
		},
		phi.Cutoffs{Normal: cfg.Health.CutoffNormal, Watch: cfg.Health.CutoffWatch, Warning: cfg.Health.CutoffWarning},
	)

	diag := diagnostic.New(diagnostic.DefaultRules())

	recommend, err := contrib.GetRecommender(cfg.Recommendation.Engine)
	if err != nil {
		log.Fatal("recommendation engine not registered", zap.Error(err))
	}

	cooldowns := cooldown.New(cooldown.Intervals{Warning: cfg.CooldownWarning(), Alarm: cfg.CooldownAlarm()})

	var publisher egress.Publisher = egress.NewLogSink(log)

	points := operator.NewMemRegistry()
	heartbeats := heartbeat.New(cfg.HeartbeatInterval())

	rul := prognostics.New(cfg.Health.VelocityFullScale, prognostics.DefaultDegradationTable())
	assets := assethealth.New()

	l2 := l2queue.New(l2queue.Config{
		Capacity:      cfg.L2.QueueCapacity,
		WorkerCount:   cfg.L2.WorkerCount,
		MaxRetries:    cfg.L2.MaxRetries,
		FailThreshold: cfg.L2.Circuit.FailThreshold,
		ResetSeconds:  cfg.L2.Circuit.ResetSeconds,
		DropPolicy:    parseDropPolicy(cfg.L2.DropPolicy),
	}, orchestrator.NewL2Worker(diag, publisher, log))

	orch := orchestrator.New(
		orchestrator.Config{
			RPMDefault:    cfg.L1Feature.RPMDefault,
			RecommendLang: cfg.Recommendation.Lang,
			WorkerCount:   cfg.L2.WorkerCount,
			QueueDepth:    cfg.L2.QueueCapacity,
		},
		log, ring, l1, trendDet, baselines, persistence, persistLimits,
		fsms, phiCalc, diag, recommend, cooldowns, l2, heartbeats, publisher, points, metrics,
		rul, assets,
	)
	orch.Start(ctx)
	log.Info("orchestrator started")

	// ── Step 7: Operator control socket ───────────────────────────────────────
	if cfg.Operator.Enabled {
		opSrv := operator.NewServer(cfg.Operator.SocketPath, orch.PointRegistry(), log)
		go func() {
			if err := opSrv.ListenAndServe(ctx); err != nil {
				log.Error("operator server error", zap.Error(err))
			}
		}()
		log.Info("operator socket started", zap.String("path", cfg.Operator.SocketPath))
	} else {
		log.Info("operator socket disabled")
	}

	// ── Step 8: Ingress listener ───────────────────────────────────────────────
	ingressSrv := ingress.NewServer(*ingressAddr, orch, log)
	go func() {
		if err := ingressSrv.ListenAndServe(ctx); err != nil {
			log.Error("ingress server error", zap.Error(err))
		}
	}()

	// ── Step 9: SIGHUP config re-validation ────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			log.Info("config hot-reload successful",
				zap.Float64("new_cutoff_warning", newCfg.Health.CutoffWarning))
			// Thresholds/weights are not hot-swapped mid-process: the
			// orchestrator's collaborators hold them by value at
			// construction time. A full reload requires a restart.
		}
	}()

	// ── Step 10: Wait for shutdown signal ──────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	l2.Stop(5 * time.Second)

	if err := db.PutBaselines(restoreableRecords(baselines.Snapshot())); err != nil {
		log.Error("final baseline flush failed", zap.Error(err))
	} else {
		log.Info("baselines flushed", zap.Int("accumulators", len(baselines.Snapshot())))
	}

	log.Info("vibralyzer shutdown complete")
}

// restoreRecords adapts storage.BaselineRecord rows into baseline.Record
// rows for baseline.Store.Restore.
func restoreRecords(recs []storage.BaselineRecord) []baseline.Record {
	out := make([]baseline.Record, len(recs))
	for i, r := range recs {
		out[i] = baseline.Record{Asset: r.Asset, Point: r.Point, Feature: r.Feature, Mean: r.Mean, N: r.SampleCount}
	}
	return out
}

// restoreableRecords adapts baseline.Store.Snapshot output into the shape
// storage.DB.PutBaselines persists.
func restoreableRecords(recs []baseline.Record) []storage.BaselineRecord {
	out := make([]storage.BaselineRecord, len(recs))
	for i, r := range recs {
		out[i] = storage.BaselineRecord{Asset: r.Asset, Point: r.Point, Feature: r.Feature, Mean: r.Mean, SampleCount: r.N}
	}
	return out
}

func parseDropPolicy(name string) l2queue.DropPolicy {
	if name == "drop_oldest" {
		return l2queue.DropOldest
	}
	return l2queue.DropNew
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
