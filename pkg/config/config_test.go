package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/aether/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".aether.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Empty(t, cfg.Plugin.Config)
	assert.Empty(t, cfg.Plugin.Frontend)
	assert.Equal(t, config.DefaultWorkers, cfg.Host.Workers)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.Host.MaxFileSize)
	assert.Equal(t, config.DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, config.DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, config.DefaultIdleTimeout, cfg.Server.IdleTimeout)
	assert.Equal(t, config.DefaultLogLevel, cfg.Observability.LogLevel)
	assert.Equal(t, config.DefaultEnvironment, cfg.Observability.Environment)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), size)
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultServerAddr, cfg.Server.Addr)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
plugin:
  config: '{"rules": ["oid"]}'
  frontend: tsx
host:
  workers: 4
  max_file_size: "512 KiB"
server:
  addr: ":9000"
  read_timeout: "15s"
  idle_timeout: "2m"
observability:
  otlp_endpoint: "localhost:4317"
  otlp_headers:
    authorization: "Bearer t"
  otlp_insecure: true
  sample_ratio: 0.25
  log_level: debug
  log_json: true
  environment: staging
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.JSONEq(t, `{"rules": ["oid"]}`, cfg.Plugin.Config)
	assert.Equal(t, "tsx", cfg.Plugin.Frontend)
	assert.Equal(t, 4, cfg.Host.Workers)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, config.DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer t"}, cfg.Observability.OTLPHeaders)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 1e-9)
	assert.True(t, cfg.Observability.LogJSON)
	assert.Equal(t, "staging", cfg.Observability.Environment)

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(512*1024), size)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AETHER_HOST_WORKERS", "12")
	t.Setenv("AETHER_PLUGIN_CONFIG", `{"all": false}`)
	t.Setenv("AETHER_OBSERVABILITY_LOG_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, "host:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Host.Workers)
	assert.JSONEq(t, `{"all": false}`, cfg.Plugin.Config)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"negative workers", "host:\n  workers: -1\n", config.ErrInvalidWorkers},
		{"bad size", "host:\n  max_file_size: lots\n", config.ErrInvalidMaxFileSize},
		{"zero size", "host:\n  max_file_size: \"0\"\n", config.ErrInvalidMaxFileSize},
		{"ratio above one", "observability:\n  sample_ratio: 1.5\n", config.ErrInvalidSampleRatio},
		{"ratio below zero", "observability:\n  sample_ratio: -0.1\n", config.ErrInvalidSampleRatio},
		{"log level", "observability:\n  log_level: loud\n", config.ErrInvalidLogLevel},
		{"timeout", "server:\n  read_timeout: 0s\n", config.ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate_JoinsAllViolations(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Host:          config.HostConfig{Workers: -2, MaxFileSize: "nope"},
		Observability: config.ObservabilityConfig{SampleRatio: 3, LogLevel: "info"},
		Server:        config.ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
	}

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
	require.ErrorIs(t, err, config.ErrInvalidMaxFileSize)
	require.ErrorIs(t, err, config.ErrInvalidSampleRatio)
	assert.NotErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)

	_, err = config.LoadConfig(writeConfig(t, "host:\n  workers: [invalid yaml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
