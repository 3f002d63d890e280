package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vnykmshr/filemq/internal/queue"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Queues))
	for name := range c.Queues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ValidateQueueOptions(name, c.Queues[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// ValidateQueueOptions checks one named queue configuration. Failures are
// *queue.ConfigurationError.
func ValidateQueueOptions(name string, opts QueueOptions) error {
	if strings.TrimSpace(name) == "" {
		return &queue.ConfigurationError{Item: "configuration name", Reason: "is required"}
	}
	if strings.TrimSpace(opts.Path) == "" {
		return &queue.ConfigurationError{Item: "path", Reason: fmt.Sprintf("is required for %q", name)}
	}
	if opts.MaxMessageSize < 0 {
		return &queue.ConfigurationError{Item: "max_message_size", Reason: fmt.Sprintf("cannot be negative for %q", name)}
	}
	if opts.MinFreeDiskSpace < 0 {
		return &queue.ConfigurationError{Item: "min_free_disk_space", Reason: fmt.Sprintf("cannot be negative for %q", name)}
	}
	return nil
}
