package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/filemq/internal/config"
	"github.com/vnykmshr/filemq/internal/logging"
	"github.com/vnykmshr/filemq/pkg/filemq"
)

type commandContext struct {
	flags *rootFlags

	configOnce   sync.Once
	config       *config.Config
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *logging.ZapLogger
	loggerErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configExists = exists
	})
	return c.config, c.configErr
}

// ensureLogger builds the zap logger. Without a configuration file the
// format follows stderr: console for a terminal, JSON otherwise.
func (c *commandContext) ensureLogger() (*logging.ZapLogger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}

		opts := cfg.LoggerOptions()
		if !c.configExists {
			opts.Format = defaultLogFormat(os.Stderr)
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			opts.Level = level
		}
		if format := strings.TrimSpace(c.flags.logFormat); format != "" {
			opts.Format = format
		}

		c.logger, c.loggerErr = logging.New(opts)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) close() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// openQueue resolves --queue and --root into an open queue. A URI is handed
// to the factory as is; a plain name addresses the default configuration,
// with --root replacing its path.
func (c *commandContext) openQueue() (*filemq.Queue, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	target := strings.TrimSpace(c.flags.queue)
	root := strings.TrimSpace(c.flags.root)

	uri := target
	if !strings.Contains(target, "://") {
		uri = (&url.URL{Scheme: filemq.Scheme, Path: "/" + target}).String()
	} else if root != "" {
		return nil, fmt.Errorf("--root cannot be combined with a queue URI")
	}

	if root != "" {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return nil, err
		}
		entry, _ := registry.Options(config.DefaultQueueConfig)
		entry.Path = expanded
		if err := registry.AddOptions(config.DefaultQueueConfig, entry); err != nil {
			return nil, err
		}
	}

	factory := filemq.NewFactory(registry, &filemq.Options{
		Logger: filemq.NewZapLogger(logger.Zap()),
	})
	return factory.Create(uri)
}

func defaultLogFormat(f *os.File) string {
	if shouldColorize(f) {
		return "console"
	}
	return "json"
}

func shouldColorize(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
