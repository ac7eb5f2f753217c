package service

import (
	"context"
	"sync"
	"time"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/metrics"
)

// contribution is what one source reported in one refresh cycle
type contribution struct {
	source string

	hosts    []*domain.Host
	networks []*domain.Network
	links    []*domain.Link

	hostsErr    error
	networksErr error
	linksErr    error
}

// Refresh runs every enabled source, merges the results and commits a new
// snapshot. It reports whether the topology fingerprint changed. Failing
// sources only lose their contribution; the returned error is set only when
// ctx ends before the results can be merged.
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	start := time.Now()
	seq := e.seq.Add(1)
	entries := e.sources.Enabled()

	results := make([]*contribution, len(entries))
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i, entry := range entries {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = e.collect(ctx, entry)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		metrics.RecordRefresh("canceled", time.Since(start).Seconds())
		return false, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordRefresh("canceled", time.Since(start).Seconds())
		return false, err
	}

	changed, ok := e.commit(ctx, seq, results)
	switch {
	case !ok:
		metrics.RecordRefresh("stale", time.Since(start).Seconds())
	case changed:
		metrics.RecordRefresh("changed", time.Since(start).Seconds())
	default:
		metrics.RecordRefresh("unchanged", time.Since(start).Seconds())
	}
	return changed, nil
}

// collect runs the capabilities of one source concurrently. Link inference
// receives the pending host result of the same source.
func (e *Engine) collect(ctx context.Context, entry adapter.Entry) *contribution {
	c := &contribution{source: entry.Name}
	var wg sync.WaitGroup

	var hosts adapter.HostsFuture
	if entry.Caps.Hosts != nil {
		hosts = adapter.StartHostsFuture(ctx, entry.Caps.Hosts.ListHosts)
	}

	if entry.Caps.Networks != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.networks, c.networksErr = entry.Caps.Networks.ListNetworks(ctx)
		}()
	}

	if entry.Caps.Links != nil {
		if hosts == nil {
			e.logger.Debug().Str("source", entry.Name).Msg("Skipping link inference for source without host discovery")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.links, c.linksErr = entry.Caps.Links.InferLinks(ctx, hosts)
			}()
		}
	}

	if hosts != nil {
		c.hosts, c.hostsErr = hosts(ctx)
	}
	wg.Wait()
	return c
}

// report logs and counts the failed capabilities of c
func (e *Engine) report(c *contribution) {
	for _, f := range []struct {
		capability adapter.Capability
		err        error
	}{
		{adapter.CapabilityHosts, c.hostsErr},
		{adapter.CapabilityNetworks, c.networksErr},
		{adapter.CapabilityLinks, c.linksErr},
	} {
		if f.err == nil {
			continue
		}
		metrics.RecordSourceError(c.source, string(f.capability))
		e.logger.Debug().
			Err(f.err).
			Str("source", c.source).
			Str("capability", string(f.capability)).
			Msg("Source call failed, contributing nothing this cycle")
	}
}

// withFallback replaces each failed part of c by the previous cycle's
// part of the same source
func (e *Engine) withFallback(c *contribution) *contribution {
	prev, ok := e.previous[c.source]
	if !e.retainOnFailure || !ok {
		return c
	}
	merged := *c
	if c.hostsErr != nil {
		merged.hosts = prev.hosts
	}
	if c.networksErr != nil {
		merged.networks = prev.networks
	}
	if c.linksErr != nil {
		merged.links = prev.links
	}
	return &merged
}

// commit merges results into fresh maps and swaps the snapshot. ok is
// false when a newer cycle already committed and results were discarded.
func (e *Engine) commit(ctx context.Context, seq uint64, results []*contribution) (changed, ok bool) {
	for _, c := range results {
		e.report(c)
	}

	e.mu.Lock()
	if seq < e.committed {
		e.mu.Unlock()
		e.logger.Debug().Uint64("cycle", seq).Msg("Discarding refresh finished after a newer one")
		return false, false
	}

	hosts := make(map[string]*domain.Host)
	networks := make(map[string]*domain.Network)
	links := make(map[string]*domain.Link)
	current := make(map[string]*contribution, len(results))

	// Later sources win per id.
	for _, c := range results {
		c = e.withFallback(c)
		current[c.source] = c
		for _, h := range c.hosts {
			hosts[h.ID] = h
		}
		for _, n := range c.networks {
			networks[n.ID] = n
		}
		for _, l := range c.links {
			links[l.Key()] = l
		}
	}
	for key, l := range links {
		if hosts[l.Source.ID] == nil || hosts[l.Target.ID] == nil {
			delete(links, key)
		}
	}
	// Membership follows the committed hosts only; fetches never touch it.
	e.networks.RebuildMembership(hosts)

	topo := domain.NewTopology(hosts, networks, links, e.options)
	topo.GeneratedAt = e.now()
	prev := e.snapshot
	changed = prev.Fingerprint != topo.Fingerprint

	e.snapshot = topo
	e.committed = seq
	e.previous = current
	e.graph = domain.DeriveGraph(topo)
	graph := e.graph

	// Saves and events leave in commit order.
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	e.mu.Unlock()

	metrics.SetTopologySize(len(topo.Hosts), len(topo.Networks), len(topo.Links))
	if !changed {
		return false, true
	}

	e.logger.Info().
		Int("hosts", len(topo.Hosts)).
		Int("networks", len(topo.Networks)).
		Int("links", len(topo.Links)).
		Str("fingerprint", topo.Fingerprint).
		Msg("Topology changed")

	if e.store != nil {
		if err := e.store.SaveSnapshot(context.WithoutCancel(ctx), topo); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to store snapshot")
		}
	}
	e.bus.Publish(Event{
		Type:    EventTopologyChanged,
		Payload: TopologyChanged{Topology: topo, Graph: graph},
	})
	return true, true
}
