package config

import (
	"sort"
	"sync"
)

// Registry holds named queue configurations. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]QueueOptions
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]QueueOptions)}
}

// AddOptions validates opts and stores them under name, replacing any
// existing entry with that name.
func (r *Registry) AddOptions(name string, opts QueueOptions) error {
	if err := ValidateQueueOptions(name, opts); err != nil {
		return err
	}

	r.mu.Lock()
	r.entries[name] = opts
	r.mu.Unlock()
	return nil
}

// Options returns the configuration registered under name.
func (r *Registry) Options(name string) (QueueOptions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts, ok := r.entries[name]
	return opts, ok
}

// Names returns the registered configuration names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
