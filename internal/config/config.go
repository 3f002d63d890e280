package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/vnykmshr/filemq/internal/logging"
	"github.com/vnykmshr/filemq/internal/queue"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultQueueConfig is the configuration name used when none is given.
const DefaultQueueConfig = "default"

// Logging configures the CLI logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// QueueOptions is one named queue configuration.
type QueueOptions struct {
	// Path is the root directory queues are created under.
	Path string `toml:"path"`

	// SyncWrites fsyncs message files and directories. Unset means true.
	SyncWrites *bool `toml:"sync_writes"`

	// MaxMessageSize in bytes, 0 for unlimited.
	MaxMessageSize int64 `toml:"max_message_size"`

	// MinFreeDiskSpace in bytes, 0 to disable the check.
	MinFreeDiskSpace int64 `toml:"min_free_disk_space"`
}

// Config is the complete FileMQ configuration.
type Config struct {
	Logging Logging                 `toml:"logging"`
	Queues  map[string]QueueOptions `toml:"queues"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/filemq/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the path it resolved, and whether that file existed. A missing
// file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath) //nolint:gosec // G304: user-selected config file
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("filemq.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Registry builds a registry holding every configured queue configuration.
func (c *Config) Registry() (*Registry, error) {
	r := NewRegistry()
	for name, opts := range c.Queues {
		if err := r.AddOptions(name, opts); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoggerOptions returns the logger construction parameters.
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}
}

// QueueOptions converts the entry into queue options, leaving logger,
// metrics and listeners for the caller to set.
func (o QueueOptions) QueueOptions() *queue.Options {
	opts := queue.DefaultOptions()
	if o.SyncWrites != nil {
		opts.SyncWrites = *o.SyncWrites
	}
	opts.MaxMessageSize = o.MaxMessageSize
	opts.MinFreeDiskSpace = o.MinFreeDiskSpace
	return opts
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
