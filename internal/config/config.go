// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidTimeout is returned when a tool timeout is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be greater than 0")
	// ErrInvalidMaxDuration is returned when DEFAULT_MAX_DURATION is not positive.
	ErrInvalidMaxDuration = errors.New("config: DEFAULT_MAX_DURATION must be greater than 0")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_FRAMES is below 1.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_FRAMES must be at least 1")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Workspace settings
	TempDir string `env:"TEMP_DIR, default=/tmp/keyframe-api" json:"temp_dir"`

	// External tools
	YTDLPPath   string `env:"YTDLP_PATH, default=yt-dlp" json:"ytdlp_path"`
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Processing settings
	DownloadTimeout     time.Duration `env:"DOWNLOAD_TIMEOUT, default=120s" json:"download_timeout"`
	FrameTimeout        time.Duration `env:"FRAME_TIMEOUT, default=30s" json:"frame_timeout"`
	ProbeTimeout        time.Duration `env:"PROBE_TIMEOUT, default=30s" json:"probe_timeout"`
	DefaultMaxDuration  float64       `env:"DEFAULT_MAX_DURATION, default=60" json:"default_max_duration"`
	MaxConcurrentFrames int           `env:"MAX_CONCURRENT_FRAMES, default=1" json:"max_concurrent_frames"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.DownloadTimeout <= 0 || c.FrameTimeout <= 0 || c.ProbeTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if !(c.DefaultMaxDuration > 0) {
		return ErrInvalidMaxDuration
	}
	if c.MaxConcurrentFrames < 1 {
		return ErrInvalidConcurrency
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, YTDLPPath: %s, FFmpegPath: %s, FFprobePath: %s, DownloadTimeout: %s, FrameTimeout: %s, ProbeTimeout: %s, DefaultMaxDuration: %g, MaxConcurrentFrames: %d, AllowedOrigins: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.YTDLPPath,
		c.FFmpegPath,
		c.FFprobePath,
		c.DownloadTimeout,
		c.FrameTimeout,
		c.ProbeTimeout,
		c.DefaultMaxDuration,
		c.MaxConcurrentFrames,
		strings.Join(c.AllowedOrigins, ","),
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
