// Package config provides configuration loading, validation, and hot-reload
// for the vibralyzer agent.
//
// Configuration file: /etc/vibralyzer/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - Agent listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml and log the result.
//   - No field of the running configuration is changed: collaborators
//     hold their settings from construction time, so every change,
//     thresholds and weights included, takes effect only after a restart.
//   - If the new config is invalid, the old config remains active and an
//     error is logged. The agent does NOT crash on invalid hot-reload config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (e.g., alpha ∈ [0,1], weights ≥ 0).
//   - Invalid config on startup: agent refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime can be injected at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for vibralyzer.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// NodeID is a unique identifier for this edge node.
	// Used in logs and metrics.
	// Default: hostname.
	NodeID string `yaml:"node_id"`

	// Raw configures ring-buffer ingestion of sensor sample packets.
	Raw RawConfig `yaml:"raw"`

	// L1Feature configures L1 DSP feature extraction.
	L1Feature L1FeatureConfig `yaml:"l1_feature"`

	// Baseline configures the adaptive per-feature EWMA baseline.
	Baseline BaselineConfig `yaml:"baseline"`

	// EarlyFault configures the persistence checker's hysteresis
	// thresholds and the early-fault state machine.
	EarlyFault EarlyFaultConfig `yaml:"early_fault"`

	// Health configures the PHI health-index weights, scales, and
	// SCADA state cutoffs.
	Health HealthConfig `yaml:"health"`

	// L2 configures the deep diagnostic job queue and cooldown.
	L2 L2Config `yaml:"l2"`

	// Heartbeat configures the periodic liveness snapshot.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// MQTT configures the SCADA egress broker connection.
	MQTT MQTTConfig `yaml:"mqtt"`

	// Storage configures the BoltDB persistent baseline store.
	Storage StorageConfig `yaml:"storage"`

	// Observability configures metrics and logging.
	Observability ObservabilityConfig `yaml:"observability"`

	// Operator configures the operator override Unix socket.
	Operator OperatorConfig `yaml:"operator"`

	// Recommendation selects the active recommendation engine.
	Recommendation RecommendationConfig `yaml:"recommendation"`
}

// RawConfig holds per-point ring-buffer ingestion parameters.
type RawConfig struct {
	// WindowSize is the number of samples a point's window must accumulate
	// before L1 feature extraction runs. Default: 4096.
	WindowSize int `yaml:"window_size"`
}

// L1FeatureConfig holds DSP parameters for feature extraction.
type L1FeatureConfig struct {
	// SamplingRate is the accelerometer sampling frequency in Hz.
	// Default: 25600.
	SamplingRate float64 `yaml:"sampling_rate"`

	// RPMDefault is used for velocity integration when a sample packet
	// carries no tachometer reading. Default: 1800.
	RPMDefault float64 `yaml:"rpm_default"`
}

// BaselineConfig holds the adaptive baseline EWMA parameters.
type BaselineConfig struct {
	// Alpha is the EWMA smoothing factor α ∈ [0.0, 1.0]. Default: 0.2.
	Alpha float64 `yaml:"alpha"`

	// MinSamples is the number of updates a feature's baseline needs
	// before it stops being reported as warming up. Default: 20.
	MinSamples int `yaml:"min_samples"`
}

// EarlyFaultConfig holds the persistence checker's hysteresis thresholds.
type EarlyFaultConfig struct {
	// WatchPersistence, WarningPersistence, AlarmPersistence are the
	// ascending counter thresholds at which sustained evidence promotes
	// to each level. Defaults: 3, 6, 10.
	WatchPersistence   int `yaml:"watch_persistence"`
	WarningPersistence int `yaml:"warning_persistence"`
	AlarmPersistence   int `yaml:"alarm_persistence"`

	// HysteresisClear is the number of consecutive NORMAL ticks required
	// to clear a sustained non-NORMAL level back to NORMAL. Default: 4.
	HysteresisClear int `yaml:"hysteresis_clear"`
}

// HealthConfig holds the PHI weights, full-scale normalization
// constants, and SCADA state cutoffs.
type HealthConfig struct {
	// Weights for the composite severity formula
	// severity = wV*vel + wE*env + wC*crest. Defaults: 0.5, 0.3, 0.2.
	WeightVelocity float64 `yaml:"weight_velocity"`
	WeightEnvelope float64 `yaml:"weight_envelope"`
	WeightCrest    float64 `yaml:"weight_crest"`

	// Full-scale normalization constants the raw features are divided by
	// before weighting. Defaults: 7.1 mm/s, 0.35 g, 6.0.
	VelocityFullScale float64 `yaml:"velocity_full_scale"`
	EnvelopeFullScale float64 `yaml:"envelope_full_scale"`
	CrestFullScale    float64 `yaml:"crest_full_scale"`

	// Cutoffs are the PHI thresholds below which a point drops to the
	// next SCADA state (closed on the upper side). Defaults: 90, 75, 55.
	CutoffNormal  float64 `yaml:"cutoff_normal"`
	CutoffWatch   float64 `yaml:"cutoff_watch"`
	CutoffWarning float64 `yaml:"cutoff_warning"`
}

// L2Config holds the deep diagnostic job queue and cooldown parameters.
type L2Config struct {
	// Enable selects whether Validate checks the l2 queue settings below.
	// Default: true. It does not gate L2 jobs: the orchestrator enqueues
	// them for WARNING/ALARM states whatever its value.
	Enable bool `yaml:"enable"`

	// CooldownWarningSec, CooldownAlarmSec are the minimum number of
	// seconds between successive L2 triggers for the same (asset, point)
	// at that state. Defaults: 30, 10.
	CooldownWarningSec int `yaml:"cooldown_warning_sec"`
	CooldownAlarmSec   int `yaml:"cooldown_alarm_sec"`

	// QueueCapacity is the bounded job queue depth. Default: 256.
	QueueCapacity int `yaml:"queue_capacity"`

	// WorkerCount is the number of diagnostic worker goroutines. Default: 4.
	WorkerCount int `yaml:"worker_count"`

	// MaxRetries is the number of times a failed job is requeued before
	// being counted as dropped. Default: 2.
	MaxRetries int `yaml:"max_retries"`

	// Circuit configures the wall-clock circuit breaker that trips after
	// repeated consecutive job failures.
	Circuit CircuitConfig `yaml:"circuit"`

	// DropPolicy is "drop_new" or "drop_oldest", selecting which job is
	// discarded when the queue is at capacity. Default: "drop_new".
	DropPolicy string `yaml:"drop_policy"`
}

// CircuitConfig holds the L2 queue's circuit-breaker parameters.
type CircuitConfig struct {
	// FailThreshold is the number of consecutive job failures that trips
	// the breaker open. Default: 5.
	FailThreshold int `yaml:"fail_threshold"`

	// ResetSeconds is how long the breaker stays open before the next
	// dequeue is allowed through again. Default: 30.
	ResetSeconds int `yaml:"reset_seconds"`
}

// HeartbeatConfig holds the periodic per-point liveness snapshot interval.
type HeartbeatConfig struct {
	// IntervalSec is the minimum number of seconds between heartbeat
	// emissions for a given (asset, point). Default: 60.
	IntervalSec int `yaml:"interval_sec"`
}

// MQTTConfig holds the SCADA egress broker connection parameters.
type MQTTConfig struct {
	// Broker is the MQTT broker hostname. Default: localhost.
	Broker string `yaml:"broker"`

	// Port is the MQTT broker port. Default: 1883.
	Port int `yaml:"port"`

	// RawTopic is the topic raw sample packets are published to for
	// downstream replay/archival. Default: vibration/raw.
	RawTopic string `yaml:"raw_topic"`
}

// StorageConfig holds BoltDB baseline-persistence parameters.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB file.
	// Default: /var/lib/vibralyzer/vibralyzer.db.
	DBPath string `yaml:"db_path"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// OperatorConfig holds operator override parameters.
// Overrides allow privileged operators to pin, unpin, or reset the
// cooldown of an (asset, point) without restarting the agent.
type OperatorConfig struct {
	// SocketPath is the Unix domain socket path for the operator CLI.
	// Permissions: 0600, owned by root.
	// Default: /run/vibralyzer/operator.sock.
	SocketPath string `yaml:"socket_path"`

	// Enabled controls whether the operator socket is active. Default: true.
	Enabled bool `yaml:"enabled"`
}

// RecommendationConfig selects the active recommendation engine and its
// default response language.
type RecommendationConfig struct {
	// Engine is the registered contrib.Recommender name. Default: "table".
	Engine string `yaml:"engine"`

	// Lang is the default language code used when a request specifies none.
	// Default: "en".
	Lang string `yaml:"lang"`
}

// DefaultDBPath mirrors the storage package constant for use in config defaults.
const DefaultDBPath = "/var/lib/vibralyzer/vibralyzer.db"

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Raw: RawConfig{
			WindowSize: 4096,
		},
		L1Feature: L1FeatureConfig{
			SamplingRate: 25600,
			RPMDefault:   1800,
		},
		Baseline: BaselineConfig{
			Alpha:      0.2,
			MinSamples: 20,
		},
		EarlyFault: EarlyFaultConfig{
			WatchPersistence:   3,
			WarningPersistence: 6,
			AlarmPersistence:   10,
			HysteresisClear:    4,
		},
		Health: HealthConfig{
			WeightVelocity:    0.5,
			WeightEnvelope:    0.3,
			WeightCrest:       0.2,
			VelocityFullScale: 7.1,
			EnvelopeFullScale: 0.35,
			CrestFullScale:    6.0,
			CutoffNormal:      90,
			CutoffWatch:       75,
			CutoffWarning:     55,
		},
		L2: L2Config{
			Enable:             true,
			CooldownWarningSec: 30,
			CooldownAlarmSec:   10,
			QueueCapacity:      256,
			WorkerCount:        4,
			MaxRetries:         2,
			Circuit: CircuitConfig{
				FailThreshold: 5,
				ResetSeconds:  30,
			},
			DropPolicy: "drop_new",
		},
		Heartbeat: HeartbeatConfig{
			IntervalSec: 60,
		},
		MQTT: MQTTConfig{
			Broker:   "localhost",
			Port:     1883,
			RawTopic: "vibration/raw",
		},
		Storage: StorageConfig{
			DBPath: DefaultDBPath,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Operator: OperatorConfig{
			Enabled:    true,
			SocketPath: "/run/vibralyzer/operator.sock",
		},
		Recommendation: RecommendationConfig{
			Engine: "table",
			Lang:   "en",
		},
	}
}

// HeartbeatInterval returns Heartbeat.IntervalSec as a time.Duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSec) * time.Second
}

// CooldownWarning and CooldownAlarm return the configured L2 cooldown for
// each state as a time.Duration; WARNING and ALARM have independent intervals.
func (c *Config) CooldownWarning() time.Duration {
	return time.Duration(c.L2.CooldownWarningSec) * time.Second
}

func (c *Config) CooldownAlarm() time.Duration {
	return time.Duration(c.L2.CooldownAlarmSec) * time.Second
}

func (c *Config) CircuitResetInterval() time.Duration {
	return time.Duration(c.L2.Circuit.ResetSeconds) * time.Second
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}
	if cfg.Raw.WindowSize < 1 {
		errs = append(errs, fmt.Sprintf("raw.window_size must be >= 1, got %d", cfg.Raw.WindowSize))
	}
	if cfg.L1Feature.SamplingRate <= 0 {
		errs = append(errs, fmt.Sprintf("l1_feature.sampling_rate must be > 0, got %f", cfg.L1Feature.SamplingRate))
	}
	if cfg.L1Feature.RPMDefault <= 0 {
		errs = append(errs, fmt.Sprintf("l1_feature.rpm_default must be > 0, got %f", cfg.L1Feature.RPMDefault))
	}
	if cfg.Baseline.Alpha < 0.0 || cfg.Baseline.Alpha > 1.0 {
		errs = append(errs, fmt.Sprintf("baseline.alpha must be in [0.0, 1.0], got %f", cfg.Baseline.Alpha))
	}
	if cfg.Baseline.MinSamples < 1 {
		errs = append(errs, fmt.Sprintf("baseline.min_samples must be >= 1, got %d", cfg.Baseline.MinSamples))
	}
	if cfg.EarlyFault.WatchPersistence < 1 {
		errs = append(errs, fmt.Sprintf("early_fault.watch_persistence must be >= 1, got %d", cfg.EarlyFault.WatchPersistence))
	}
	if cfg.EarlyFault.WarningPersistence < cfg.EarlyFault.WatchPersistence {
		errs = append(errs, "early_fault.warning_persistence must be >= watch_persistence")
	}
	if cfg.EarlyFault.AlarmPersistence < cfg.EarlyFault.WarningPersistence {
		errs = append(errs, "early_fault.alarm_persistence must be >= warning_persistence")
	}
	if cfg.EarlyFault.HysteresisClear < 1 {
		errs = append(errs, fmt.Sprintf("early_fault.hysteresis_clear must be >= 1, got %d", cfg.EarlyFault.HysteresisClear))
	}
	if cfg.Health.WeightVelocity < 0 || cfg.Health.WeightEnvelope < 0 || cfg.Health.WeightCrest < 0 {
		errs = append(errs, "health weights (weight_velocity, weight_envelope, weight_crest) must all be >= 0")
	}
	if cfg.Health.VelocityFullScale <= 0 || cfg.Health.EnvelopeFullScale <= 0 || cfg.Health.CrestFullScale <= 0 {
		errs = append(errs, "health full-scale constants must all be > 0")
	}
	if !(cfg.Health.CutoffNormal > cfg.Health.CutoffWatch && cfg.Health.CutoffWatch > cfg.Health.CutoffWarning) {
		errs = append(errs, "health cutoffs must satisfy cutoff_normal > cutoff_watch > cutoff_warning")
	}
	if cfg.L2.Enable {
		if cfg.L2.QueueCapacity < 1 {
			errs = append(errs, fmt.Sprintf("l2.queue_capacity must be >= 1, got %d", cfg.L2.QueueCapacity))
		}
		if cfg.L2.WorkerCount < 1 {
			errs = append(errs, fmt.Sprintf("l2.worker_count must be >= 1, got %d", cfg.L2.WorkerCount))
		}
		if cfg.L2.MaxRetries < 0 {
			errs = append(errs, fmt.Sprintf("l2.max_retries must be >= 0, got %d", cfg.L2.MaxRetries))
		}
		if cfg.L2.Circuit.FailThreshold < 1 {
			errs = append(errs, fmt.Sprintf("l2.circuit.fail_threshold must be >= 1, got %d", cfg.L2.Circuit.FailThreshold))
		}
		if cfg.L2.Circuit.ResetSeconds < 1 {
			errs = append(errs, fmt.Sprintf("l2.circuit.reset_seconds must be >= 1, got %d", cfg.L2.Circuit.ResetSeconds))
		}
		if cfg.L2.DropPolicy != "drop_new" && cfg.L2.DropPolicy != "drop_oldest" {
			errs = append(errs, fmt.Sprintf("l2.drop_policy must be \"drop_new\" or \"drop_oldest\", got %q", cfg.L2.DropPolicy))
		}
		if cfg.L2.CooldownWarningSec < 0 || cfg.L2.CooldownAlarmSec < 0 {
			errs = append(errs, "l2.cooldown_warning_sec and l2.cooldown_alarm_sec must both be >= 0")
		}
	}
	if cfg.Heartbeat.IntervalSec < 1 {
		errs = append(errs, fmt.Sprintf("heartbeat.interval_sec must be >= 1, got %d", cfg.Heartbeat.IntervalSec))
	}
	if cfg.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker must not be empty")
	}
	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		errs = append(errs, fmt.Sprintf("mqtt.port must be in [1, 65535], got %d", cfg.MQTT.Port))
	}
	if cfg.MQTT.RawTopic == "" {
		errs = append(errs, "mqtt.raw_topic must not be empty")
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	}
	if cfg.Recommendation.Engine == "" {
		errs = append(errs, "recommendation.engine must not be empty")
	}
	if cfg.Recommendation.Lang == "" {
		errs = append(errs, "recommendation.lang must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s",
			joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
