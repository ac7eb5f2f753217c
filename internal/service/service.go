package service

import (
	"context"
	"fmt"
	"io"

	"github.com/theredcat/heimdall/internal/codec"
	"github.com/theredcat/heimdall/internal/domain"
)

// Snapshot returns the last committed topology
func (e *Engine) Snapshot() *domain.Topology {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Graph returns the presentation graph of the last committed topology
func (e *Engine) Graph() *domain.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

// Host looks up a host in the last committed topology
func (e *Engine) Host(id string) (*domain.Host, error) {
	h, ok := e.Snapshot().Host(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrHostNotFound, id)
	}
	return h, nil
}

// Options returns the current display options
func (e *Engine) Options() domain.DisplayOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options
}

// SetOptions changes the display options. The options are part of the
// fingerprint, so the current snapshot is restamped and a change is
// published like any other topology change.
func (e *Engine) SetOptions(ctx context.Context, opts domain.DisplayOptions) bool {
	e.mu.Lock()
	if e.options == opts {
		e.mu.Unlock()
		return false
	}
	e.options = opts

	prev := e.snapshot
	hosts := make(map[string]*domain.Host, len(prev.Hosts))
	for _, h := range prev.Hosts {
		hosts[h.ID] = h
	}
	networks := make(map[string]*domain.Network, len(prev.Networks))
	for _, n := range prev.Networks {
		networks[n.ID] = n
	}
	links := make(map[string]*domain.Link, len(prev.Links))
	for _, l := range prev.Links {
		links[l.Key()] = l
	}

	topo := domain.NewTopology(hosts, networks, links, opts)
	topo.GeneratedAt = e.now()
	e.snapshot = topo
	e.graph = domain.DeriveGraph(topo)
	graph := e.graph

	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	e.mu.Unlock()

	e.logger.Info().Bool("apps", opts.Apps).Bool("networks", opts.Networks).Msg("Display options changed")

	if e.store != nil {
		if err := e.store.SaveSnapshot(context.WithoutCancel(ctx), topo); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to store snapshot")
		}
	}
	e.bus.Publish(Event{Type: EventOptionsChanged, Payload: opts})
	e.bus.Publish(Event{
		Type:    EventTopologyChanged,
		Payload: TopologyChanged{Topology: topo, Graph: graph},
	})
	return true
}

// Export writes the last committed topology in the named format
func (e *Engine) Export(format string, w io.Writer) error {
	exporter, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	return exporter.Export(e.Snapshot(), w)
}
