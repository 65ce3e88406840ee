package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the ringq configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and locates the key-value backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite or memory
	Path    string `yaml:"path"`    // SQLite database file (empty = default data dir)
}

// QueueConfig holds settings for the queue the CLI operates on.
type QueueConfig struct {
	Name             string `yaml:"name"`              // Buffer name inside the store
	EvictOverwritten bool   `yaml:"evict_overwritten"` // Delete slots that fall off a full buffer
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file path (empty = stderr)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    DefaultPaths().DatabaseFile(),
		},
		Queue: QueueConfig{
			Name: "default",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the configuration from the default config file.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads the configuration at path. A missing file yields the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default config file.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to path.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key.
// For example: "storage.backend" or "queue.name"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "storage":
		return c.getStorageField(field)
	case "queue":
		return c.getQueueField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "storage":
		return c.setStorageField(field, value)
	case "queue":
		return c.setQueueField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

func (c *Config) getStorageField(field string) (string, error) {
	switch field {
	case "backend":
		return c.Storage.Backend, nil
	case "path":
		return c.Storage.Path, nil
	default:
		return "", fmt.Errorf("unknown field: storage.%s", field)
	}
}

func (c *Config) setStorageField(field, value string) error {
	switch field {
	case "backend":
		if !isValidBackend(value) {
			return fmt.Errorf("invalid backend: %s (must be sqlite or memory)", value)
		}
		c.Storage.Backend = value
	case "path":
		c.Storage.Path = value
	default:
		return fmt.Errorf("unknown field: storage.%s", field)
	}
	return nil
}

func (c *Config) getQueueField(field string) (string, error) {
	switch field {
	case "name":
		return c.Queue.Name, nil
	case "evict_overwritten":
		return strconv.FormatBool(c.Queue.EvictOverwritten), nil
	default:
		return "", fmt.Errorf("unknown field: queue.%s", field)
	}
}

func (c *Config) setQueueField(field, value string) error {
	switch field {
	case "name":
		if strings.TrimSpace(value) == "" {
			return errors.New("queue.name must not be empty")
		}
		c.Queue.Name = value
	case "evict_overwritten":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for evict_overwritten: %w", err)
		}
		c.Queue.EvictOverwritten = v
	default:
		return fmt.Errorf("unknown field: queue.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isValidBackend(c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be sqlite or memory (got: %s)", c.Storage.Backend)
	}

	if strings.TrimSpace(c.Queue.Name) == "" {
		return errors.New("queue.name must not be empty")
	}

	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}

	return nil
}

func isValidBackend(backend string) bool {
	switch backend {
	case "sqlite", "memory":
		return true
	default:
		return false
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RINGQ_BACKEND"); v != "" && isValidBackend(v) {
		c.Storage.Backend = v
	}
	if v := os.Getenv("RINGQ_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RINGQ_QUEUE"); v != "" {
		c.Queue.Name = v
	}
	if v := os.Getenv("RINGQ_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("RINGQ_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
}

// ListKeys returns the user-facing configuration keys.
func ListKeys() []string {
	return []string{
		"storage.backend",
		"storage.path",
		"queue.name",
		"queue.evict_overwritten",
		"log.level",
		"log.file",
	}
}
