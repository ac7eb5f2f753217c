package adapter

import (
	"context"

	"github.com/theredcat/heimdall/internal/domain"
)

// Source is a pluggable data source. Besides Name, a source implements
// any non-empty subset of HostLister, NetworkLister and LinkInferrer.
// Sources that discover hosts usually also implement domain.HostController
// so actions on their hosts can be routed back to them.
type Source interface {
	// Name returns the unique identifier for this source
	Name() string
}

// HostLister discovers hosts
type HostLister interface {
	Source
	ListHosts(ctx context.Context) ([]*domain.Host, error)
}

// NetworkLister discovers networks
type NetworkLister interface {
	Source
	ListNetworks(ctx context.Context) ([]*domain.Network, error)
}

// LinkInferrer derives links from a host list. It receives the pending
// result of the same source's host discovery for the current cycle.
type LinkInferrer interface {
	Source
	InferLinks(ctx context.Context, hosts HostsFuture) ([]*domain.Link, error)
}

// HostsFuture waits for a host discovery result. It may be called any
// number of times and always yields the same result.
type HostsFuture func(ctx context.Context) ([]*domain.Host, error)

// SourceConfig holds configuration for a source instance
type SourceConfig struct {
	// Enabled determines if the source takes part in refresh cycles
	Enabled bool `json:"enabled"`
}

// StartHostsFuture runs fetch in the background and returns a future for its result
func StartHostsFuture(ctx context.Context, fetch func(context.Context) ([]*domain.Host, error)) HostsFuture {
	var (
		done  = make(chan struct{})
		hosts []*domain.Host
		err   error
	)
	go func() {
		defer close(done)
		hosts, err = fetch(ctx)
	}()

	return func(waitCtx context.Context) ([]*domain.Host, error) {
		select {
		case <-done:
			return hosts, err
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		}
	}
}

// ResolvedHosts returns a future that is already complete
func ResolvedHosts(hosts []*domain.Host, err error) HostsFuture {
	return func(context.Context) ([]*domain.Host, error) {
		return hosts, err
	}
}
