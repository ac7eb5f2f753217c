package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/domain"
)

// SnapshotStore mirrors every committed topology that changed
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, t *domain.Topology) error
}

// Option configures an Engine
type Option func(*Engine)

// WithSnapshotStore saves changed snapshots to store
func WithSnapshotStore(store SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithEventBus publishes engine events on bus instead of a private one
func WithEventBus(bus *EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithNetworkRegistry shares an existing network registry with the engine
func WithNetworkRegistry(r *domain.NetworkRegistry) Option {
	return func(e *Engine) {
		e.networks = r
	}
}

// WithDisplayOptions sets the initial display options
func WithDisplayOptions(opts domain.DisplayOptions) Option {
	return func(e *Engine) {
		e.options = opts
	}
}

// WithRetainOnFailure keeps a failing source's previous contribution for
// the failed capability instead of dropping it for the cycle
func WithRetainOnFailure() Option {
	return func(e *Engine) {
		e.retainOnFailure = true
	}
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine merges what every enabled source reports into one topology
// snapshot, and routes control actions back to the source owning a host.
type Engine struct {
	sources  *adapter.Registry
	networks *domain.NetworkRegistry
	bus      *EventBus
	store    SnapshotStore
	logger   zerolog.Logger
	now      func() time.Time

	retainOnFailure bool

	seq       atomic.Uint64
	publishMu sync.Mutex

	mu        sync.RWMutex
	committed uint64
	options   domain.DisplayOptions
	snapshot  *domain.Topology
	graph     *domain.Graph
	previous  map[string]*contribution
}

// NewEngine creates an engine with no sources
func NewEngine(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      time.Now,
		options:  domain.DefaultDisplayOptions(),
		previous: make(map[string]*contribution),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = NewEventBus()
	}
	if e.networks == nil {
		e.networks = domain.NewNetworkRegistry()
	}
	e.sources = adapter.NewRegistry(logger)
	e.snapshot = domain.EmptyTopology(e.options)
	e.snapshot.GeneratedAt = e.now()
	e.graph = domain.DeriveGraph(e.snapshot)
	return e
}

// AddSource registers an enabled source
func (e *Engine) AddSource(src adapter.Source) error {
	return e.sources.Register(src, adapter.SourceConfig{Enabled: true})
}

// SetSourceEnabled includes or excludes a source from later refreshes
func (e *Engine) SetSourceEnabled(name string, enabled bool) error {
	return e.sources.SetEnabled(name, enabled)
}

// Sources describes the registered sources
func (e *Engine) Sources() []adapter.SourceInfo {
	return e.sources.List()
}

// Networks returns the registry sources must intern networks through
func (e *Engine) Networks() *domain.NetworkRegistry {
	return e.networks
}

// Events returns the bus the engine publishes on
func (e *Engine) Events() *EventBus {
	return e.bus
}

// Close releases every source holding resources
func (e *Engine) Close() error {
	return e.sources.Close()
}
