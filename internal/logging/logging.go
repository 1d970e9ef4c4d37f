// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "advisory-canvas", "logs", "canvas.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stderr
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithChart adds a chart key to the logger context.
func WithChart(logger zerolog.Logger, chart string) zerolog.Logger {
	return logger.With().Str("chart", chart).Logger()
}

// WithPeer adds a peer ID to the logger context.
func WithPeer(logger zerolog.Logger, peerID string) zerolog.Logger {
	return logger.With().Str("peer", peerID).Logger()
}

// WithSession adds a relay session name to the logger context.
func WithSession(logger zerolog.Logger, session string) zerolog.Logger {
	return logger.With().Str("session", session).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogChange logs an emitted or applied change.
func LogChange(logger zerolog.Logger, direction, kind, chart, shapeID string, version int64) {
	logger.Debug().
		Str("event", "change").
		Str("direction", direction).
		Str("kind", kind).
		Str("chart", chart).
		Str("shape_id", shapeID).
		Int64("version", version).
		Msg("Drawing change")
}

// LogSync logs a sync request or an adopted snapshot.
func LogSync(logger zerolog.Logger, action, chart string, shapes int, version int64) {
	logger.Info().
		Str("event", "sync").
		Str("action", action).
		Str("chart", chart).
		Int("shapes", shapes).
		Int64("version", version).
		Msg("Drawing sync")
}

// LogDropped logs an inbound message that was rejected before reaching the store.
func LogDropped(logger zerolog.Logger, msgType, from string, err error) {
	logger.Warn().
		Str("event", "dropped").
		Str("type", msgType).
		Str("from", from).
		Err(err).
		Msg("Inbound message dropped")
}

// LogSendFailure logs a failed fire-and-forget send. No retry follows.
func LogSendFailure(logger zerolog.Logger, msgType string, err error) {
	logger.Warn().
		Str("event", "send_failed").
		Str("type", msgType).
		Err(err).
		Msg("Send failed")
}

// LogRelay logs relay connection lifecycle events.
func LogRelay(logger zerolog.Logger, event, session, peerID string, duration time.Duration) {
	logger.Info().
		Str("event", event).
		Str("session", session).
		Str("peer", peerID).
		Dur("duration", duration).
		Msg("Relay connection")
}
