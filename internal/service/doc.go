// Package service implements the reconciliation engine.
//
// Engine owns the registered sources and the shared network registry.
// Each Refresh runs every enabled source concurrently, merges hosts,
// networks and links into fresh maps (later sources win per id) and swaps
// in a new domain.Topology. A source that fails contributes nothing for
// that cycle unless the engine was built WithRetainOnFailure.
//
// A snapshot is fingerprinted; only a changed fingerprint is stored and
// published as EventTopologyChanged. Refresh cycles are numbered, and a
// cycle that finishes after a newer one already committed is discarded.
//
// Control actions are resolved against the current snapshot and routed to
// the controller of the source that reported the host.
//
// Poller drives Refresh on a timer whose period depends on whether any
// event consumer is connected.
package service
