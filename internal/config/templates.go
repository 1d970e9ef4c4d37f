package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Advisory Canvas Configuration

[canvas]
# Chart opened by "canvas peer" when none is given
ticker = "AAPL"
period = "1D"
# Default drawing tool: freehand, trendline, vertical, rectangle, arrow, fibonacci
tool = "trendline"
# Default stroke
stroke_color = "#2962ff"
stroke_width = 2.0
# Hit-test tolerance in pixels for select and double-click delete
hit_tolerance = 6.0
# Empty days appended to the right of the chart (0 disables future space)
future_days = 0
# Surface size for headless peers
width = 1200.0
height = 600.0

[sync]
# Reject sync responses that do not answer this replica's latest request
strict_epoch = false
# Switch charts when another peer announces a chart change
follow_chart_changes = false

[relay]
# Listen address for "canvas relay"
addr = "127.0.0.1:8787"
# Hub queue and per-peer buffer sizes
buffer_size = 1024
subscriber_buffer = 256
# Frames per second allowed per connection, and burst size
rate_limit = 50.0
rate_burst = 100
# Largest frame accepted from a peer
max_message_bytes = 1048576
write_timeout = "5s"
# SQLite traffic journal (metadata only); empty disables it
journal_path = ""
# Journal entries older than this are purged at startup
journal_retention = "168h"

[peer]
# Relay base URL; overridden by CANVAS_RELAY_URL
relay_url = "ws://127.0.0.1:8787"
# Session room; overridden by CANVAS_SESSION
session = "default"
# Leave empty for a random peer ID
peer_id = ""
# Reconnect policy
max_retries = 5
base_delay = "500ms"
max_delay = "30s"

[logging]
# debug, info, warn, error; overridden by CANVAS_LOG_LEVEL
level = "info"
console = true
file = false
max_size_mb = 100
max_backups = 7
max_age_days = 30
`

// createTemplateConfig writes the default config.toml into configDir.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
