// Package config provides configuration loading and validation for aether.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("host workers must not be negative")
	ErrInvalidMaxFileSize = errors.New("invalid host max file size")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidTimeout     = errors.New("server timeouts must be positive")
)

// Default configuration values.
const (
	DefaultWorkers      = 0
	DefaultMaxFileSize  = "1MB"
	DefaultServerAddr   = "127.0.0.1:8080"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	DefaultLogLevel     = "info"
	DefaultEnvironment  = "dev"
)

// Config holds all configuration for the aether CLI and server.
type Config struct {
	Plugin        PluginConfig        `mapstructure:"plugin"`
	Host          HostConfig          `mapstructure:"host"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PluginConfig is what the host puts on the plugin's configuration channel.
type PluginConfig struct {
	// Config is the raw JSON payload. Empty means no payload.
	Config string `mapstructure:"config"`
	// Frontend forces a grammar instead of detecting it per file.
	Frontend string `mapstructure:"frontend"`
}

// HostConfig controls the batch runner.
type HostConfig struct {
	// Workers bounds concurrent units; zero means GOMAXPROCS.
	Workers     int    `mapstructure:"workers"`
	MaxFileSize string `mapstructure:"max_file_size"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ObservabilityConfig holds tracing, metrics and logging settings.
type ObservabilityConfig struct {
	OTLPEndpoint string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders  map[string]string `mapstructure:"otlp_headers"`
	OTLPInsecure bool              `mapstructure:"otlp_insecure"`
	SampleRatio  float64           `mapstructure:"sample_ratio"`
	LogLevel     string            `mapstructure:"log_level"`
	LogJSON      bool              `mapstructure:"log_json"`
	Environment  string            `mapstructure:"environment"`
}

// MaxFileSizeBytes parses Host.MaxFileSize ("1MB", "512 KiB", "2097152").
func (cfg *Config) MaxFileSizeBytes() (uint64, error) {
	size, err := humanize.ParseBytes(cfg.Host.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, cfg.Host.MaxFileSize, err)
	}

	if size == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, cfg.Host.MaxFileSize)
	}

	return size, nil
}

// SlogLevel parses Observability.LogLevel.
func (cfg *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Observability.LogLevel)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Observability.LogLevel)
	}

	return level, nil
}

// Validate checks all sections and joins every violation found.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Host.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Host.Workers))
	}

	if _, err := cfg.MaxFileSizeBytes(); err != nil {
		errs = append(errs, err)
	}

	if cfg.Observability.SampleRatio < 0 || cfg.Observability.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, cfg.Observability.SampleRatio))
	}

	if _, err := cfg.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 || cfg.Server.IdleTimeout <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}

	return errors.Join(errs...)
}
