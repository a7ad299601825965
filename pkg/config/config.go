package config

import (
	"fmt"
	"time"
)

// Config is the top-level service configuration. Values come from a YAML
// or JSON file with SINGURA_-prefixed environment overrides applied on top.
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	NATS        NATSConfig        `yaml:"nats" json:"nats"`
	Detection   DetectionConfig   `yaml:"detection" json:"detection"`
	Correlation CorrelationConfig `yaml:"correlation" json:"correlation"`
	Evaluation  EvaluationConfig  `yaml:"evaluation" json:"evaluation"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// NATSConfig configures the optional finding publication side-channel.
// An empty URL disables publishing entirely.
type NATSConfig struct {
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
}

// DetectionConfig groups the tunable thresholds of every detector. These
// threshold blocks are the only externally tunable parameters of the
// detection core.
type DetectionConfig struct {
	MinConfidence float64              `yaml:"min_confidence" json:"min_confidence"`
	MaxConcurrent int                  `yaml:"max_concurrent" json:"max_concurrent"`
	Timeout       time.Duration        `yaml:"timeout" json:"timeout"`
	Velocity      VelocityThresholds   `yaml:"velocity" json:"velocity"`
	Batch         BatchThresholds      `yaml:"batch" json:"batch"`
	Escalation    EscalationThresholds `yaml:"escalation" json:"escalation"`
}

// VelocityThresholds defines per-event-type human ceilings (events/second)
// plus the automation and critical rates used for anomaly scaling.
type VelocityThresholds struct {
	FileCreatePerSecond       float64 `yaml:"file_create_per_second" json:"file_create_per_second"`
	PermissionChangePerSecond float64 `yaml:"permission_change_per_second" json:"permission_change_per_second"`
	EmailSendPerSecond        float64 `yaml:"email_send_per_second" json:"email_send_per_second"`
	AutomationPerSecond       float64 `yaml:"automation_per_second" json:"automation_per_second"`
	CriticalPerSecond         float64 `yaml:"critical_per_second" json:"critical_per_second"`
}

// HumanCeiling returns the per-second ceiling for an event type, falling
// back to the generic automation threshold for unknown types.
func (v VelocityThresholds) HumanCeiling(eventType string) float64 {
	switch eventType {
	case "file_create":
		return v.FileCreatePerSecond
	case "permission_change":
		return v.PermissionChangePerSecond
	case "email_send":
		return v.EmailSendPerSecond
	default:
		return v.AutomationPerSecond
	}
}

// BatchThresholds tunes the batch-operation sliding window.
type BatchThresholds struct {
	MaxWindow           time.Duration `yaml:"max_window" json:"max_window"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" json:"similarity_threshold"`
	MinBatchSize        int           `yaml:"min_batch_size" json:"min_batch_size"`
	LikelihoodThreshold float64       `yaml:"likelihood_threshold" json:"likelihood_threshold"`
	MaxPairGap          time.Duration `yaml:"max_pair_gap" json:"max_pair_gap"`
}

// EscalationThresholds tunes the permission-escalation detector.
type EscalationThresholds struct {
	TimeWindowDays         int     `yaml:"time_window_days" json:"time_window_days"`
	MinEvents              int     `yaml:"min_events" json:"min_events"`
	MaxEscalationsPerMonth int     `yaml:"max_escalations_per_month" json:"max_escalations_per_month"`
	MaxLevelJump           int     `yaml:"max_level_jump" json:"max_level_jump"`
	VelocityPerDay         float64 `yaml:"velocity_per_day" json:"velocity_per_day"`
}

// CorrelationConfig tunes the automation-chain engine.
type CorrelationConfig struct {
	Window              time.Duration `yaml:"window" json:"window"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" json:"confidence_threshold"`
	DedupeCacheSize     int           `yaml:"dedupe_cache_size" json:"dedupe_cache_size"`
}

// EvaluationConfig tunes the evaluation harness.
type EvaluationConfig struct {
	BaselineDir     string `yaml:"baseline_dir" json:"baseline_dir"`
	BaselineHistory int    `yaml:"baseline_history" json:"baseline_history"`
	SnapshotCron    string `yaml:"snapshot_cron" json:"snapshot_cron"`
	LabeledDataDir  string `yaml:"labeled_data_dir" json:"labeled_data_dir"`
}

// Default returns the configuration the service starts with when no file
// or environment overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			Subject: "singura.findings",
		},
		Detection: DetectionConfig{
			MinConfidence: 30,
			MaxConcurrent: 4,
			Timeout:       30 * time.Second,
			Velocity:      DefaultVelocityThresholds(),
			Batch:         DefaultBatchThresholds(),
			Escalation:    DefaultEscalationThresholds(),
		},
		Correlation: CorrelationConfig{
			Window:              5 * time.Minute,
			ConfidenceThreshold: 0.8,
			DedupeCacheSize:     1024,
		},
		Evaluation: EvaluationConfig{
			BaselineDir:     "baselines",
			BaselineHistory: 50,
			SnapshotCron:    "",
			LabeledDataDir:  "datasets",
		},
	}
}

// DefaultVelocityThresholds returns the human-rate ceilings the velocity
// detector ships with.
func DefaultVelocityThresholds() VelocityThresholds {
	return VelocityThresholds{
		FileCreatePerSecond:       1,
		PermissionChangePerSecond: 2,
		EmailSendPerSecond:        3,
		AutomationPerSecond:       5,
		CriticalPerSecond:         10,
	}
}

// DefaultBatchThresholds returns the stock batch-operation window settings.
func DefaultBatchThresholds() BatchThresholds {
	return BatchThresholds{
		MaxWindow:           30 * time.Second,
		SimilarityThreshold: 0.7,
		MinBatchSize:        3,
		LikelihoodThreshold: 0.7,
		MaxPairGap:          5 * time.Second,
	}
}

// DefaultEscalationThresholds returns the stock permission-escalation settings.
func DefaultEscalationThresholds() EscalationThresholds {
	return EscalationThresholds{
		TimeWindowDays:         30,
		MinEvents:              3,
		MaxEscalationsPerMonth: 2,
		MaxLevelJump:           2,
		VelocityPerDay:         0.1,
	}
}

// Validate checks invariants that would otherwise surface as confusing
// behavior deep inside the detectors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 100 {
		return fmt.Errorf("detection min_confidence must be in [0,100], got %v", c.Detection.MinConfidence)
	}
	if c.Correlation.ConfidenceThreshold < 0 || c.Correlation.ConfidenceThreshold > 1 {
		return fmt.Errorf("correlation confidence_threshold must be in [0,1], got %v", c.Correlation.ConfidenceThreshold)
	}
	if c.Detection.Batch.SimilarityThreshold <= 0 || c.Detection.Batch.SimilarityThreshold > 1 {
		return fmt.Errorf("batch similarity_threshold must be in (0,1], got %v", c.Detection.Batch.SimilarityThreshold)
	}
	if c.Detection.Velocity.CriticalPerSecond <= c.Detection.Velocity.AutomationPerSecond {
		return fmt.Errorf("velocity critical_per_second must exceed automation_per_second")
	}
	if c.Evaluation.BaselineHistory <= 0 {
		return fmt.Errorf("evaluation baseline_history must be positive, got %d", c.Evaluation.BaselineHistory)
	}
	return nil
}
