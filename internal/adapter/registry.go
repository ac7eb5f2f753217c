package adapter

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoCapability is returned when registering a source that discovers nothing
var ErrNoCapability = errors.New("source implements no discovery capability")

// ErrSourceNotFound is returned for a source name nobody registered
var ErrSourceNotFound = errors.New("source not found")

// Entry is a registered source with its resolved capabilities
type Entry struct {
	Name   string
	Source Source
	Caps   Capabilities
	Config SourceConfig
}

// Registry holds the registered sources in registration order
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	byName  map[string]*Entry
	logger  zerolog.Logger
}

// NewRegistry creates a new source registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		byName: make(map[string]*Entry),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(src Source, config SourceConfig) error {
	caps := Inspect(src)
	if !caps.Discovers() {
		return fmt.Errorf("register %s: %w", src.Name(), ErrNoCapability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("source %s already registered", name)
	}

	entry := &Entry{Name: name, Source: src, Caps: caps, Config: config}
	r.entries = append(r.entries, entry)
	r.byName[name] = entry

	r.logger.Info().
		Str("source", name).
		Interface("capabilities", caps.List()).
		Bool("enabled", config.Enabled).
		Msg("Registered source")
	return nil
}

// Get returns the entry registered under name
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Enabled returns a copy of the enabled entries in registration order
func (r *Registry) Enabled() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Config.Enabled {
			out = append(out, *e)
		}
	}
	return out
}

// With returns the enabled entries that have capability cap
func (r *Registry) With(cap Capability) []Entry {
	var out []Entry
	for _, e := range r.Enabled() {
		if e.Caps.Has(cap) {
			out = append(out, e)
		}
	}
	return out
}

// SetEnabled toggles a source
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	e.Config.Enabled = enabled
	return nil
}

// Len returns the number of registered sources
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns information about registered sources
func (r *Registry) List() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SourceInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, SourceInfo{
			Name:         e.Name,
			Capabilities: e.Caps.List(),
			Enabled:      e.Config.Enabled,
		})
	}
	return infos
}

// SourceInfo provides read-only information about a source
type SourceInfo struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	Enabled      bool         `json:"enabled"`
}

// Close releases every source that holds resources
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, e := range r.entries {
		closer, ok := e.Source.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}
