// Package adapter implements the data sources that feed the topology.
//
// A source is anything with a Name that implements at least one of the
// discovery capabilities:
//
//	HostLister     ListHosts(ctx) ([]*domain.Host, error)
//	NetworkLister  ListNetworks(ctx) ([]*domain.Network, error)
//	LinkInferrer   InferLinks(ctx, HostsFuture) ([]*domain.Link, error)
//
// Sources that own their hosts also implement domain.HostController so
// that control actions, logs, exec and interactive sessions can be routed
// back to them.
//
// # Docker
//
// DockerSource talks to a Docker Engine through the official SDK. List
// results are held in a short-lived cache so that bursts of refreshes
// reach the daemon at most once per TTL, and concurrent misses share one
// in-flight fetch. Containers become hosts, endpoint networks are interned
// through a shared domain.NetworkRegistry, and links are inferred from
// environment values and labels that mention another container's alias.
//
// Interactive sessions and log following use the daemon's websocket attach
// endpoint. Plain logs and exec output arrive in the multiplexed stream
// format and are decoded with package stream.
//
// # Nmap
//
// NmapSource scans CIDR ranges and hosts with nmap and reports every up
// address as a host. It has no control capability.
//
// # Registry
//
// Registry keeps the registered sources in registration order along with
// their resolved capabilities and enabled flag.
package adapter
