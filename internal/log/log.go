// Package log provides JSON-lines structured logging for ringq.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
	}
}

// New creates a JSON-lines structured logger. Lines look like:
//
//	{"ts":"2024-01-15T10:30:00Z","level":"INFO","msg":"queue pushed","queue":"default","start":0,"end":1}
//
// Log levels:
//   - debug: per-operation detail (overwrites, commits)
//   - info: queue mutations issued from the CLI
//   - warn: recoverable problems
//   - error: storage failures
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "ts"
			}
			return a
		},
	}

	return slog.New(slog.NewJSONHandler(output, opts))
}

// NewFromEnv creates a logger configured from environment variables.
// RINGQ_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("RINGQ_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// ParseLevel maps a config level name (debug, info, warn, error) to a
// slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", name)
	}
}

// LogCommit logs a committed batch.
func LogCommit(logger *slog.Logger, queue, batchID string, start, end uint64) {
	logger.Debug("queue committed",
		"queue", queue,
		"batch_id", batchID,
		"start", start,
		"end", end,
	)
}

// LogPushed logs items added to a queue.
func LogPushed(logger *slog.Logger, queue, batchID string, count int) {
	logger.Info("queue pushed", "queue", queue, "batch_id", batchID, "count", count)
}

// LogPopped logs an item removed from a queue.
func LogPopped(logger *slog.Logger, queue, batchID string, integer int32, boolean bool) {
	logger.Info("queue popped",
		"queue", queue,
		"batch_id", batchID,
		"integer", integer,
		"boolean", boolean,
	)
}

// LogSQLiteError logs SQLite errors.
func LogSQLiteError(logger *slog.Logger, operation string, err error) {
	logger.Error("sqlite error", "operation", operation, "error", err)
}
