// Package config provides configuration loading from environment variables
// and YAML run presets.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidFrameRate is returned when FRAME_RATE is not positive.
	ErrInvalidFrameRate = errors.New("config: FRAME_RATE must be positive")
	// ErrInvalidOpacity is returned when DARKEN_OPACITY is outside [0, 1).
	ErrInvalidOpacity = errors.New("config: DARKEN_OPACITY must be in [0, 1)")
	// ErrInvalidTolerance is returned when ASPECT_TOLERANCE is not in (0, 1).
	ErrInvalidTolerance = errors.New("config: ASPECT_TOLERANCE must be in (0, 1)")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_JOBS is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_JOBS must be positive")
	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port              int `env:"PORT, default=8080" json:"port"`
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=1" json:"max_concurrent_jobs"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR" json:"temp_dir"`
	JobDBPath string `env:"JOB_DB_PATH" json:"job_db_path,omitempty"`

	// Encoder binaries
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Timeouts
	ProbeTimeout        time.Duration `env:"PROBE_TIMEOUT, default=30s" json:"probe_timeout"`
	NormalizeTimeout    time.Duration `env:"NORMALIZE_TIMEOUT, default=10m" json:"normalize_timeout"`
	ConcatBaseTimeout   time.Duration `env:"CONCAT_BASE_TIMEOUT, default=2m" json:"concat_base_timeout"`
	ConcatTimeoutFactor float64       `env:"CONCAT_TIMEOUT_FACTOR, default=2" json:"concat_timeout_factor"`

	// Output format
	FrameRate    int    `env:"FRAME_RATE, default=30" json:"frame_rate"`
	PixelFormat  string `env:"PIXEL_FORMAT, default=yuv420p" json:"pixel_format"`
	VideoCodec   string `env:"VIDEO_CODEC, default=libx264" json:"video_codec"`
	VideoPreset  string `env:"VIDEO_PRESET, default=fast" json:"video_preset"`
	VideoCRF     int    `env:"VIDEO_CRF, default=23" json:"video_crf"`
	AudioCodec   string `env:"AUDIO_CODEC, default=aac" json:"audio_codec"`
	AudioBitrate string `env:"AUDIO_BITRATE, default=192k" json:"audio_bitrate"`

	// Fit settings
	BlurSigma       float64 `env:"BLUR_SIGMA, default=20" json:"blur_sigma"`
	DarkenOpacity   float64 `env:"DARKEN_OPACITY, default=0.4" json:"darken_opacity"`
	AspectTolerance float64 `env:"ASPECT_TOLERANCE, default=0.05" json:"aspect_tolerance"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
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

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConcurrency
	}
	if c.FrameRate <= 0 {
		return ErrInvalidFrameRate
	}
	if c.DarkenOpacity < 0 || c.DarkenOpacity >= 1 {
		return ErrInvalidOpacity
	}
	if c.AspectTolerance <= 0 || c.AspectTolerance >= 1 {
		return ErrInvalidTolerance
	}
	if c.ProbeTimeout <= 0 || c.NormalizeTimeout <= 0 || c.ConcatBaseTimeout <= 0 || c.ConcatTimeoutFactor < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w. The CLI logs to stderr so that
// stdout stays free for results.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, JobDBPath: %s, FFmpegPath: %s, FFprobePath: %s, FrameRate: %d, PixelFormat: %s, VideoCodec: %s, AudioCodec: %s, S3Bucket: %s, S3Region: %s, S3Prefix: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.JobDBPath,
		c.FFmpegPath,
		c.FFprobePath,
		c.FrameRate,
		c.PixelFormat,
		c.VideoCodec,
		c.AudioCodec,
		c.S3Bucket,
		c.S3Region,
		c.S3Prefix,
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
