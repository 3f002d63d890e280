package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// DefaultDataDir is the root used by the default queue configuration.
func DefaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "filemq")
	}
	return "~/.local/share/filemq"
}
