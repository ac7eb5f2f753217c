package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// Network is a backend network that hosts attach to.
// Instances are interned by a NetworkRegistry, so ID is fixed for life;
// name and data may be filled in later by a richer discovery path.
type Network struct {
	ID string

	mu    sync.RWMutex
	name  string
	data  any
	hosts map[string]struct{}
}

// NewNetwork creates a standalone network. Most callers want
// NetworkRegistry.Intern instead.
func NewNetwork(id, name string, data any) (*Network, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyIdentity
	}
	return &Network{
		ID:    id,
		name:  name,
		data:  data,
		hosts: make(map[string]struct{}),
	}, nil
}

// Name returns the display name
func (n *Network) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// Data returns the raw backend document, if any
func (n *Network) Data() any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.data
}

// fill sets name and data only where they are still empty
func (n *Network) fill(name string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.name == "" {
		n.name = name
	}
	if n.data == nil {
		n.data = data
	}
}

// AddHost records hostID as a member
func (n *Network) AddHost(hostID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts[hostID] = struct{}{}
}

// HasHost reports whether hostID is a member
func (n *Network) HasHost(hostID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.hosts[hostID]
	return ok
}

// HostIDs returns the member host ids, sorted
func (n *Network) HostIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.hosts))
	for id := range n.hosts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// setHosts replaces the members with ids
func (n *Network) setHosts(ids map[string]struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts = ids
}

// frozen returns a detached copy of n whose members are exactly ids.
// Later changes to n do not show through the copy.
func (n *Network) frozen(ids []string) *Network {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c := &Network{
		ID:    n.ID,
		name:  n.name,
		data:  n.data,
		hosts: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		c.hosts[id] = struct{}{}
	}
	return c
}

// MarshalJSON renders the network with its member ids
func (n *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    string   `json:"id"`
		Name  string   `json:"name"`
		Hosts []string `json:"hosts"`
		Data  any      `json:"data,omitempty"`
	}{
		ID:    n.ID,
		Name:  n.Name(),
		Hosts: n.HostIDs(),
		Data:  n.Data(),
	})
}

// NetworkRegistry interns networks by id: for a given id there is at
// most one *Network alive in the registry. It is safe for concurrent use.
type NetworkRegistry struct {
	mu       sync.Mutex
	networks map[string]*Network
}

// NewNetworkRegistry creates an empty registry
func NewNetworkRegistry() *NetworkRegistry {
	return &NetworkRegistry{networks: make(map[string]*Network)}
}

// Intern returns the network registered under id, creating it on first use.
// An existing instance keeps its identity; only an empty name or data is
// filled from the arguments.
func (r *NetworkRegistry) Intern(id, name string, data any) (*Network, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.networks[id]; ok {
		n.fill(name, data)
		return n, nil
	}

	n, err := NewNetwork(id, name, data)
	if err != nil {
		return nil, err
	}
	r.networks[id] = n
	return n, nil
}

// Get looks up an interned network
func (r *NetworkRegistry) Get(id string) (*Network, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.networks[id]
	return n, ok
}

// All returns every interned network sorted by id
func (r *NetworkRegistry) All() []*Network {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of interned networks
func (r *NetworkRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.networks)
}

// Reset forgets every interned network
func (r *NetworkRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks = make(map[string]*Network)
}

// RebuildMembership sets the members of every interned network to the
// hosts in hosts that are attached to it. Networks no host attaches to
// end up empty.
func (r *NetworkRegistry) RebuildMembership(hosts map[string]*Host) {
	members := membership(hosts)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.networks {
		set := make(map[string]struct{}, len(members[id]))
		for _, hostID := range members[id] {
			set[hostID] = struct{}{}
		}
		n.setHosts(set)
	}
}

// membership maps network id to the ids of the hosts attached to it
func membership(hosts map[string]*Host) map[string][]string {
	members := make(map[string][]string)
	for id, h := range hosts {
		for networkID := range h.Networks {
			members[networkID] = append(members[networkID], id)
		}
	}
	return members
}
