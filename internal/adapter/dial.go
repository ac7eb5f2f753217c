package adapter

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

var (
	resolver      = &dnscache.Resolver{}
	refreshOnce   sync.Once
	dialTimeout   = 10 * time.Second
	dialKeepAlive = 30 * time.Second
)

// StartResolverRefresh periodically refreshes the cached DNS entries used
// to reach TCP daemons, until ctx ends. Only the first call has an effect.
func StartResolverRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	refreshOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					resolver.Refresh(true)
					log.Debug().Dur("interval", interval).Msg("DNS cache refreshed")
				}
			}
		}()
	})
}

// dialContext dials unix sockets directly and resolves TCP hosts through the DNS cache
func dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: dialKeepAlive}
	if network == "unix" {
		return dialer.DialContext(ctx, network, address)
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil {
		return dialer.DialContext(ctx, network, address)
	}

	ips, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
}
