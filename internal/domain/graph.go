package domain

import (
	"crypto/sha256"
	"fmt"
)

// NodeType distinguishes graph nodes
type NodeType string

const (
	NodeTypeHost    NodeType = "host"
	NodeTypeNetwork NodeType = "network"
)

// EdgeType distinguishes graph edges
type EdgeType string

const (
	// EdgeTypeL2 attaches a host to a network
	EdgeTypeL2 EdgeType = "l2link"
	// EdgeTypeL7 is an inferred application dependency between hosts
	EdgeTypeL7 EdgeType = "l7link"
)

// Graph is the derived view handed to the presentation layer
type Graph struct {
	Fingerprint string      `json:"fingerprint"`
	Nodes       []GraphNode `json:"nodes"`
	Edges       []GraphEdge `json:"edges"`
}

// GraphNode represents a node in the visualization
type GraphNode struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Type  NodeType  `json:"type"`
	State HostState `json:"state,omitempty"`
}

// GraphEdge represents an edge in the visualization
type GraphEdge struct {
	ID   string   `json:"id"`
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// HostNodeID is the graph node id of a host
func HostNodeID(id string) string { return "host-" + id }

// NetworkNodeID is the graph node id of a network
func NetworkNodeID(id string) string { return "network-" + id }

// DeriveGraph converts a topology snapshot into nodes and edges.
// Networks are drawn only when opts.Networks is set and are dropped when
// no host attaches to them; links are drawn only when opts.Apps is set.
func DeriveGraph(t *Topology) *Graph {
	opts := t.Options
	graph := &Graph{
		Fingerprint: t.Fingerprint,
		Nodes:       make([]GraphNode, 0, len(t.Hosts)+len(t.Networks)),
		Edges:       make([]GraphEdge, 0),
	}

	connected := make(map[string]bool)
	for _, host := range t.Hosts {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:    HostNodeID(host.ID),
			Label: host.Name,
			Type:  NodeTypeHost,
			State: host.State,
		})
		if !opts.Networks {
			continue
		}
		for _, networkID := range host.NetworkIDs() {
			if _, ok := t.Network(networkID); !ok {
				continue
			}
			connected[networkID] = true
			graph.Edges = append(graph.Edges, newGraphEdge(HostNodeID(host.ID), NetworkNodeID(networkID), EdgeTypeL2))
		}
	}

	if opts.Networks {
		for _, network := range t.Networks {
			if !connected[network.ID] {
				continue
			}
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:    NetworkNodeID(network.ID),
				Label: network.Name(),
				Type:  NodeTypeNetwork,
			})
		}
	}

	if opts.Apps {
		for _, link := range t.Links {
			graph.Edges = append(graph.Edges, newGraphEdge(HostNodeID(link.Source.ID), HostNodeID(link.Target.ID), EdgeTypeL7))
		}
	}

	return graph
}

// newGraphEdge creates an edge with a deterministic ID based on endpoints and type
func newGraphEdge(from, to string, edgeType EdgeType) GraphEdge {
	key := fmt.Sprintf("%s-%s-%s", from, to, edgeType)
	hash := sha256.Sum256([]byte(key))
	return GraphEdge{
		ID:   fmt.Sprintf("%x", hash[:8]),
		From: from,
		To:   to,
		Type: edgeType,
	}
}
