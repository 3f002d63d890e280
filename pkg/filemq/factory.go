package filemq

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vnykmshr/filemq/internal/config"
)

// Scheme is the URI scheme handled by Factory.
const Scheme = "filemq"

// Configuration types, re-exported for hosts that build a Registry in code
// or load one from a TOML file.
type (
	Config      = config.Config
	QueueConfig = config.QueueOptions
	Registry    = config.Registry
)

// DefaultQueueConfig is the configuration name used by URIs without one.
const DefaultQueueConfig = config.DefaultQueueConfig

// NewRegistry returns an empty configuration registry.
func NewRegistry() *Registry {
	return config.NewRegistry()
}

// LoadConfig reads a TOML configuration file. An empty path searches the
// default locations. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg, _, _, err := config.Load(path)
	return cfg, err
}

// Factory opens queues addressed as filemq://<configuration>/<queue>.
// The configuration name is looked up in a Registry to find the root path.
// An empty host or "." selects DefaultQueueConfig.
type Factory struct {
	registry *Registry
	opts     *Options
}

// NewFactory returns a factory resolving configuration names against
// registry. opts, if not nil, supplies listeners, logger and metrics for
// every queue created; the per-configuration settings override its storage
// fields.
func NewFactory(registry *Registry, opts *Options) *Factory {
	return &Factory{registry: registry, opts: opts}
}

// Scheme returns the URI scheme this factory handles.
func (f *Factory) Scheme() string { return Scheme }

// CanCreate reports whether uri uses the filemq scheme.
func (f *Factory) CanCreate(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, Scheme)
}

// Create opens the queue addressed by uri.
func (f *Factory) Create(uri string) (*Queue, error) {
	configName, queueName, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	if f.registry == nil {
		return nil, &ConfigurationError{Item: "configuration", Reason: "registry is not set"}
	}
	cfg, ok := f.registry.Options(configName)
	if !ok {
		return nil, &ConfigurationError{Item: "configuration", Reason: fmt.Sprintf("%q is not registered", configName)}
	}

	opts := &Options{}
	if f.opts != nil {
		*opts = *f.opts
	}
	base := cfg.QueueOptions()
	opts.SyncWrites = base.SyncWrites
	opts.MaxMessageSize = base.MaxMessageSize
	opts.MinFreeDiskSpace = base.MinFreeDiskSpace

	return Open(queueName, cfg.Path, opts)
}

// ParseURI splits filemq://<configuration>/<queue> into its parts.
func ParseURI(uri string) (configName, queueName string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", &ConfigurationError{Item: "uri", Reason: "cannot be parsed", Err: err}
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return "", "", &ConfigurationError{Item: "uri", Reason: fmt.Sprintf("scheme %q is not %q", u.Scheme, Scheme)}
	}
	if u.User != nil || u.Port() != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", "", &ConfigurationError{Item: "uri", Reason: fmt.Sprintf("%q has unsupported parts", uri)}
	}

	configName = u.Hostname()
	if configName == "" || configName == "." {
		configName = DefaultQueueConfig
	}

	queueName = strings.TrimPrefix(u.Path, "/")
	if queueName == "" {
		return "", "", &ConfigurationError{Item: "queue name", Reason: fmt.Sprintf("is missing from %q", uri)}
	}
	if strings.Contains(queueName, "/") {
		return "", "", &ConfigurationError{Item: "queue name", Reason: fmt.Sprintf("%q must be a single path segment", queueName)}
	}
	return configName, queueName, nil
}
