package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, float64(30), cfg.Detection.MinConfidence)
	assert.Equal(t, 5*time.Minute, cfg.Correlation.Window)
	assert.Equal(t, "baselines", cfg.Evaluation.BaselineDir)
	assert.Empty(t, cfg.NATS.URL, "publishing should be disabled by default")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantMsg: "invalid server port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantMsg: "invalid server port",
		},
		{
			name:    "min confidence above scale",
			mutate:  func(c *Config) { c.Detection.MinConfidence = 150 },
			wantMsg: "min_confidence",
		},
		{
			name:    "negative correlation threshold",
			mutate:  func(c *Config) { c.Correlation.ConfidenceThreshold = -0.1 },
			wantMsg: "confidence_threshold",
		},
		{
			name:    "zero similarity threshold",
			mutate:  func(c *Config) { c.Detection.Batch.SimilarityThreshold = 0 },
			wantMsg: "similarity_threshold",
		},
		{
			name: "critical rate below automation rate",
			mutate: func(c *Config) {
				c.Detection.Velocity.CriticalPerSecond = c.Detection.Velocity.AutomationPerSecond
			},
			wantMsg: "critical_per_second",
		},
		{
			name:    "non-positive baseline history",
			mutate:  func(c *Config) { c.Evaluation.BaselineHistory = 0 },
			wantMsg: "baseline_history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9090
  shutdown_timeout: 5s
detection:
  min_confidence: 60
  velocity:
    file_create_per_second: 2
evaluation:
  snapshot_cron: "0 3 * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Default()
	require.NoError(t, NewLoader("SINGURA").LoadFromFile(path, cfg))

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, float64(60), cfg.Detection.MinConfidence)
	assert.Equal(t, float64(2), cfg.Detection.Velocity.FileCreatePerSecond)
	assert.Equal(t, "0 3 * * *", cfg.Evaluation.SnapshotCron)

	// Fields the file does not mention keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, float64(5), cfg.Detection.Velocity.AutomationPerSecond)
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"server": {"port": 9191}, "logging": {"level": "debug"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Default()
	require.NoError(t, NewLoader("SINGURA").LoadFromFile(path, cfg))

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_EmptyPathIsNoOp(t *testing.T) {
	cfg := Default()
	require.NoError(t, NewLoader("SINGURA").LoadFromFile("", cfg))
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 1"), 0o644))

	err := NewLoader("SINGURA").LoadFromFile(path, Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	err := NewLoader("SINGURA").LoadFromFile(path, Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SINGURA_SERVER_PORT", "9999")
	t.Setenv("SINGURA_LOGGING_LEVEL", "debug")
	t.Setenv("SINGURA_DETECTION_MIN_CONFIDENCE", "75.5")
	t.Setenv("SINGURA_DETECTION_TIMEOUT", "45s")
	t.Setenv("SINGURA_NATS_URL", "nats://localhost:4222")

	cfg := Default()
	require.NoError(t, NewLoader("SINGURA").LoadFromEnv(cfg))

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 75.5, cfg.Detection.MinConfidence)
	assert.Equal(t, 45*time.Second, cfg.Detection.Timeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("SINGURA_SERVER_PORT", "not-a-number")

	err := NewLoader("SINGURA").LoadFromEnv(Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SINGURA_SERVER_PORT")
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("SINGURA_SERVER_PORT", "9191")

	cfg := Default()
	require.NoError(t, NewLoader("SINGURA").Load(path, cfg))

	// Environment wins over the file.
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	assert.NoError(t, ValidateConfigPath(""))
	assert.NoError(t, ValidateConfigPath(existing))

	err := ValidateConfigPath(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	bad := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(bad, []byte(""), 0o644))
	err = ValidateConfigPath(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}
