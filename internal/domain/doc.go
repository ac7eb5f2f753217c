// Package domain defines the entity model of the heimdall topology engine.
//
// # Core Types
//
// Host is a discovered workload with a lifecycle state, DNS aliases and an
// owned mapping to the networks it attaches to. Control actions on a host
// are routed back to the source that discovered it through HostController.
//
// Network is a backend network. Networks are interned by id through a
// NetworkRegistry so every discovery path that names the same id shares one
// instance and one membership set. The registry is owned by the engine and
// injected into sources; it is resettable between independent engines.
//
// Link is a directed dependency between two hosts, recomputed every refresh
// and keyed by source and target id.
//
// # Snapshots
//
// Topology is the sorted, fingerprinted snapshot produced by a refresh.
// Graph is the node/edge view derived from a Topology for drawing.
//
// # Design Principles
//
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - Typed enumerations for states, actions and streams
package domain
