package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeLogging()
	return c.normalizeQueues()
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeQueues() error {
	if len(c.Queues) == 0 {
		c.Queues = map[string]QueueOptions{
			DefaultQueueConfig: {Path: DefaultDataDir()},
		}
	}

	for name, opts := range c.Queues {
		path, err := expandPath(strings.TrimSpace(opts.Path))
		if err != nil {
			return fmt.Errorf("queues.%s.path: %w", name, err)
		}
		opts.Path = path
		c.Queues[name] = opts
	}
	return nil
}
