package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runger/ringq/internal/config"
	"github.com/runger/ringq/internal/log"
	"github.com/runger/ringq/internal/queue"
	"github.com/runger/ringq/internal/storage"
)

// Global flags
var (
	configPath string
	dbPath     string
	queueName  string
)

var rootCmd = &cobra.Command{
	Use:   "ringq",
	Short: "persistent ring-buffer queue",
	Long: `ringq - a fixed-capacity FIFO queue kept in SQLite
  - push and pop survive restarts
  - a full queue overwrites its oldest item`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/ringq/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides storage.path)")
	rootCmd.PersistentFlags().StringVar(&queueName, "queue", "", "queue name (overrides queue.name)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file selected by --config and applies the
// global flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPaths().ConfigFile()
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if queueName != "" {
		cfg.Queue.Name = queueName
	}
	return cfg, cfg.Validate()
}

// newLogger builds the logger described by cfg. The returned closer releases
// the log file, if any.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closer := func() {}
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = func() { _ = f.Close() }
	}

	return log.New(&log.Config{Output: out, Level: level}), closer, nil
}

// errMemoryBackend is returned when the config selects the memory backend,
// which starts empty in every ringq process.
var errMemoryBackend = errors.New("storage.backend memory does not persist between ringq commands; use sqlite")

// openService opens the configured backend and returns a Service for the
// configured queue, along with the config it was built from. The returned
// closer must be called when done.
func openService() (*queue.Service, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Storage.Backend == storage.BackendMemory {
		return nil, nil, nil, errMemoryBackend
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	backend, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, storage.WithLogger(logger))
	if err != nil {
		closeLog()
		return nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	svc := queue.NewService(backend, cfg.Queue.Name,
		queue.WithLogger(logger),
		queue.WithEvictOverwritten(cfg.Queue.EvictOverwritten),
	)
	closer := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close storage", "error", err)
		}
		closeLog()
	}
	return svc, cfg, closer, nil
}
