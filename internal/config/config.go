package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the fully processed application configuration.
type Config struct {
	OutputDir string
	UserAgent string
	LogLevel  string
	Network   Network
	Mux       Mux
}

// Network controls how every HTTP request is retried and paced.
type Network struct {
	Attempts   int
	RetryDelay time.Duration
	Timeout    time.Duration
	// RequestsPerSecond of 0 means unlimited.
	RequestsPerSecond float64
}

// Mux controls the external multiplexer.
type Mux struct {
	FFmpegPath     string
	ParallelTracks bool
}

// rawNetwork and rawMux map directly to the TOML file. Durations are whole seconds.
type rawNetwork struct {
	Attempts          *int     `toml:"attempts"`
	RetryDelaySeconds *float64 `toml:"retry_delay_seconds"`
	TimeoutSeconds    *float64 `toml:"timeout_seconds"`
	RequestsPerSecond *float64 `toml:"requests_per_second"`
}

type rawMux struct {
	FFmpegPath     string `toml:"ffmpeg_path"`
	ParallelTracks *bool  `toml:"parallel_tracks"`
}

// rawConfig is the intermediate structure that maps directly to the TOML file.
// Pointer fields distinguish "absent" from an explicit zero.
type rawConfig struct {
	OutputDir string     `toml:"output_dir"`
	UserAgent string     `toml:"user_agent"`
	LogLevel  string     `toml:"log_level"`
	Network   rawNetwork `toml:"network"`
	Mux       rawMux     `toml:"mux"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		OutputDir: ".",
		UserAgent: "Mozilla/5.0",
		LogLevel:  "info",
		Network: Network{
			Attempts:   3,
			RetryDelay: 3 * time.Second,
			Timeout:    10 * time.Second,
		},
		Mux: Mux{
			FFmpegPath: "ffmpeg",
		},
	}
}

// Load reads and parses the configuration file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config TOML: %w", err)
	}

	cfg := Default()
	if raw.OutputDir != "" {
		cfg.OutputDir = raw.OutputDir
	}
	if raw.UserAgent != "" {
		cfg.UserAgent = raw.UserAgent
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(raw.LogLevel)
	}
	if raw.Network.Attempts != nil {
		cfg.Network.Attempts = *raw.Network.Attempts
	}
	if raw.Network.RetryDelaySeconds != nil {
		cfg.Network.RetryDelay = seconds(*raw.Network.RetryDelaySeconds)
	}
	if raw.Network.TimeoutSeconds != nil {
		cfg.Network.Timeout = seconds(*raw.Network.TimeoutSeconds)
	}
	if raw.Network.RequestsPerSecond != nil {
		cfg.Network.RequestsPerSecond = *raw.Network.RequestsPerSecond
	}
	if raw.Mux.FFmpegPath != "" {
		cfg.Mux.FFmpegPath = raw.Mux.FFmpegPath
	}
	if raw.Mux.ParallelTracks != nil {
		cfg.Mux.ParallelTracks = *raw.Mux.ParallelTracks
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.Network.Attempts < 1 {
		errs = append(errs, fmt.Errorf("network.attempts must be at least 1, got %d", c.Network.Attempts))
	}
	if c.Network.RetryDelay < 0 {
		errs = append(errs, errors.New("network.retry_delay_seconds must not be negative"))
	}
	if c.Network.Timeout <= 0 {
		errs = append(errs, errors.New("network.timeout_seconds must be positive"))
	}
	if c.Network.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("network.requests_per_second must not be negative"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, warning, error", c.LogLevel))
	}
	if strings.TrimSpace(c.Mux.FFmpegPath) == "" {
		errs = append(errs, errors.New("mux.ffmpeg_path must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
