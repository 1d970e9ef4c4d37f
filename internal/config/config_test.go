package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if cfg.Path != filepath.Join(dir, "config.toml") {
		t.Errorf("Path = %q", cfg.Path)
	}

	if cfg.Chart() != (models.ChartKey{Ticker: "AAPL", Period: "1D"}) {
		t.Errorf("Chart = %v", cfg.Chart())
	}
	if cfg.Canvas.Tool != "trendline" || cfg.Canvas.StrokeWidth != 2 {
		t.Errorf("unexpected canvas section: %+v", cfg.Canvas)
	}
	if cfg.Relay.WriteTimeout != 5*time.Second || cfg.Relay.JournalRetention != 168*time.Hour {
		t.Errorf("durations not decoded: %+v", cfg.Relay)
	}
	if cfg.Peer.BaseDelay != 500*time.Millisecond || cfg.Peer.MaxRetries != 5 {
		t.Errorf("unexpected peer section: %+v", cfg.Peer)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[canvas]
ticker = "MSFT"
period = "1W"
tool = "fibonacci"

[sync]
strict_epoch = true

[relay]
rate_limit = 5.0
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chart().Ticker != "MSFT" || cfg.Canvas.Tool != "fibonacci" {
		t.Errorf("file values ignored: %+v", cfg.Canvas)
	}
	if !cfg.Sync.StrictEpoch {
		t.Error("strict_epoch not read")
	}
	if cfg.Relay.RateLimit != 5 || cfg.Relay.RateBurst != 100 {
		t.Errorf("relay = %+v, want file value plus defaults", cfg.Relay)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CANVAS_RELAY_URL", "ws://relay.example:9000")
	t.Setenv("CANVAS_SESSION", "morning-desk")
	t.Setenv("CANVAS_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Peer.RelayURL != "ws://relay.example:9000" {
		t.Errorf("RelayURL = %q", cfg.Peer.RelayURL)
	}
	if cfg.Peer.Session != "morning-desk" {
		t.Errorf("Session = %q", cfg.Peer.Session)
	}
	if cfg.Logging.Level != "debug" || cfg.LogConfig().Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[canvas]
tool = "lasso"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ticker", func(c *Config) { c.Canvas.Ticker = "" }},
		{"bad period", func(c *Config) { c.Canvas.Period = "1 D" }},
		{"bad color", func(c *Config) { c.Canvas.StrokeColor = "#zzz" }},
		{"zero width", func(c *Config) { c.Canvas.StrokeWidth = 0 }},
		{"negative future", func(c *Config) { c.Canvas.FutureDays = -1 }},
		{"zero rate", func(c *Config) { c.Relay.RateLimit = 0 }},
		{"bad session", func(c *Config) { c.Peer.Session = "two words" }},
		{"bad peer id", func(c *Config) { c.Peer.PeerID = "a/b" }},
		{"no retries", func(c *Config) { c.Peer.MaxRetries = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("Validate() = %v, want ErrConfigInvalid", err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestStyle(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.Style()
	if s.Stroke != "#2962ff" || s.StrokeWidth != 2 {
		t.Errorf("Style = %+v", s)
	}
}
