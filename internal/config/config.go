// Package config provides configuration management for the canvas relay and peers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/security"
)

// AppName names the config directory and the env prefix.
const AppName = "advisory-canvas"

// Config holds all application configuration.
type Config struct {
	Canvas  CanvasConfig  `mapstructure:"canvas"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Peer    PeerConfig    `mapstructure:"peer"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// CanvasConfig holds drawing defaults for a replica.
type CanvasConfig struct {
	Ticker       string  `mapstructure:"ticker"`
	Period       string  `mapstructure:"period"`
	Tool         string  `mapstructure:"tool"`
	StrokeColor  string  `mapstructure:"stroke_color"`
	StrokeWidth  float64 `mapstructure:"stroke_width"`
	HitTolerance float64 `mapstructure:"hit_tolerance"`
	FutureDays   int     `mapstructure:"future_days"`
	Width        float64 `mapstructure:"width"`
	Height       float64 `mapstructure:"height"`
}

// SyncConfig holds replication settings.
type SyncConfig struct {
	StrictEpoch        bool `mapstructure:"strict_epoch"`
	FollowChartChanges bool `mapstructure:"follow_chart_changes"`
}

// RelayConfig holds signaling relay settings.
type RelayConfig struct {
	Addr             string        `mapstructure:"addr"`
	BufferSize       int           `mapstructure:"buffer_size"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	MaxMessageBytes  int64         `mapstructure:"max_message_bytes"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	JournalPath      string        `mapstructure:"journal_path"`
	JournalRetention time.Duration `mapstructure:"journal_retention"`
}

// PeerConfig holds the relay connection of a replica.
type PeerConfig struct {
	RelayURL   string        `mapstructure:"relay_url"`
	Session    string        `mapstructure:"session"`
	PeerID     string        `mapstructure:"peer_id"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// envBindings maps config keys to their environment overrides.
var envBindings = map[string]string{
	"peer.relay_url": "CANVAS_RELAY_URL",
	"peer.session":   "CANVAS_SESSION",
	"peer.peer_id":   "CANVAS_PEER_ID",
	"logging.level":  "CANVAS_LOG_LEVEL",
	"relay.addr":     "CANVAS_RELAY_ADDR",
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("canvas.ticker", "AAPL")
	v.SetDefault("canvas.period", "1D")
	v.SetDefault("canvas.tool", string(models.ShapeTrendline))
	v.SetDefault("canvas.stroke_color", "#2962ff")
	v.SetDefault("canvas.stroke_width", 2.0)
	v.SetDefault("canvas.hit_tolerance", 6.0)
	v.SetDefault("canvas.future_days", 0)
	v.SetDefault("canvas.width", 1200.0)
	v.SetDefault("canvas.height", 600.0)

	v.SetDefault("sync.strict_epoch", false)
	v.SetDefault("sync.follow_chart_changes", false)

	v.SetDefault("relay.addr", "127.0.0.1:8787")
	v.SetDefault("relay.buffer_size", 1024)
	v.SetDefault("relay.subscriber_buffer", 256)
	v.SetDefault("relay.rate_limit", 50.0)
	v.SetDefault("relay.rate_burst", 100)
	v.SetDefault("relay.max_message_bytes", 1<<20)
	v.SetDefault("relay.write_timeout", "5s")
	v.SetDefault("relay.journal_path", "")
	v.SetDefault("relay.journal_retention", "168h")

	v.SetDefault("peer.relay_url", "ws://127.0.0.1:8787")
	v.SetDefault("peer.session", "default")
	v.SetDefault("peer.peer_id", "")
	v.SetDefault("peer.max_retries", 5)
	v.SetDefault("peer.base_delay", "500ms")
	v.SetDefault("peer.max_delay", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "canvas.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and then read.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	v := security.NewInputValidator(true)

	if err := v.ValidateChartKey(c.Chart()); err != nil {
		return invalid("canvas chart: %v", err)
	}
	if !models.ShapeType(c.Canvas.Tool).Valid() {
		return invalid("canvas.tool %q is not a drawing tool", c.Canvas.Tool)
	}
	if err := v.ValidateColor(c.Canvas.StrokeColor); err != nil {
		return invalid("canvas.stroke_color: %v", err)
	}
	if err := v.ValidateStrokeWidth(c.Canvas.StrokeWidth); err != nil {
		return invalid("canvas.stroke_width: %v", err)
	}
	if c.Canvas.HitTolerance <= 0 {
		return invalid("canvas.hit_tolerance must be positive")
	}
	if c.Canvas.FutureDays < 0 || c.Canvas.FutureDays > 3650 {
		return invalid("canvas.future_days must be between 0 and 3650")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return invalid("canvas width and height must be positive")
	}

	if c.Relay.Addr == "" {
		return invalid("relay.addr cannot be empty")
	}
	if c.Relay.RateLimit <= 0 || c.Relay.RateBurst <= 0 {
		return invalid("relay.rate_limit and relay.rate_burst must be positive")
	}
	if c.Relay.BufferSize <= 0 || c.Relay.SubscriberBuffer <= 0 {
		return invalid("relay buffers must be positive")
	}
	if c.Relay.JournalRetention < 0 {
		return invalid("relay.journal_retention must be non-negative")
	}

	if c.Peer.RelayURL == "" {
		return invalid("peer.relay_url cannot be empty")
	}
	if err := v.ValidateIdentifier("peer.session", c.Peer.Session); err != nil {
		return invalid("peer.session: %v", err)
	}
	if c.Peer.PeerID != "" {
		if err := v.ValidateIdentifier("peer.peer_id", c.Peer.PeerID); err != nil {
			return invalid("peer.peer_id: %v", err)
		}
	}
	if c.Peer.MaxRetries < 1 {
		return invalid("peer.max_retries must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errors.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Chart returns the configured default chart key.
func (c *Config) Chart() models.ChartKey {
	return security.SanitizeChartKey(models.ChartKey{Ticker: c.Canvas.Ticker, Period: c.Canvas.Period})
}

// Style returns the configured default stroke.
func (c *Config) Style() models.Style {
	s := models.DefaultStyle()
	s.Stroke = c.Canvas.StrokeColor
	s.StrokeWidth = c.Canvas.StrokeWidth
	return s
}

// LogConfig converts the logging section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
	}
}
