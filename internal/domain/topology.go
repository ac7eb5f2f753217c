package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Topology is a point-in-time snapshot of the merged host/network/link maps
type Topology struct {
	Hosts       []*Host        `json:"hosts"`
	Networks    []*Network     `json:"networks"`
	Links       []*Link        `json:"links"`
	Options     DisplayOptions `json:"options"`
	Fingerprint string         `json:"fingerprint"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// NewTopology sorts the maps into a snapshot and stamps its fingerprint.
// The snapshot holds its own copy of every network, with members taken
// from hosts, so it does not change when interned networks do.
func NewTopology(hosts map[string]*Host, networks map[string]*Network, links map[string]*Link, opts DisplayOptions) *Topology {
	t := &Topology{
		Hosts:    make([]*Host, 0, len(hosts)),
		Networks: make([]*Network, 0, len(networks)),
		Links:    make([]*Link, 0, len(links)),
		Options:  opts,
	}
	for _, h := range hosts {
		t.Hosts = append(t.Hosts, h)
	}
	members := membership(hosts)
	for _, n := range networks {
		t.Networks = append(t.Networks, n.frozen(members[n.ID]))
	}
	for _, l := range links {
		t.Links = append(t.Links, l)
	}
	sort.Slice(t.Hosts, func(i, j int) bool { return t.Hosts[i].ID < t.Hosts[j].ID })
	sort.Slice(t.Networks, func(i, j int) bool { return t.Networks[i].ID < t.Networks[j].ID })
	sort.Slice(t.Links, func(i, j int) bool { return t.Links[i].Key() < t.Links[j].Key() })

	t.Fingerprint = Fingerprint(hosts, networks, links, opts)
	return t
}

// EmptyTopology is the snapshot before the first refresh
func EmptyTopology(opts DisplayOptions) *Topology {
	return NewTopology(nil, nil, nil, opts)
}

// Host finds a host in the snapshot
func (t *Topology) Host(id string) (*Host, bool) {
	i := sort.Search(len(t.Hosts), func(i int) bool { return t.Hosts[i].ID >= id })
	if i < len(t.Hosts) && t.Hosts[i].ID == id {
		return t.Hosts[i], true
	}
	return nil, false
}

// Network finds a network in the snapshot
func (t *Topology) Network(id string) (*Network, bool) {
	i := sort.Search(len(t.Networks), func(i int) bool { return t.Networks[i].ID >= id })
	if i < len(t.Networks) && t.Networks[i].ID == id {
		return t.Networks[i], true
	}
	return nil, false
}

// Fingerprint derives a stable value from the sorted network ids, the
// sorted host ids with their state and network attachments, the sorted
// link keys and the display options. Equal inputs always give equal values.
func Fingerprint(hosts map[string]*Host, networks map[string]*Network, links map[string]*Link, opts DisplayOptions) string {
	networkIDs := make([]string, 0, len(networks))
	for id := range networks {
		networkIDs = append(networkIDs, id)
	}
	sort.Strings(networkIDs)

	hostTokens := make([]string, 0, len(hosts))
	for id, h := range hosts {
		hostTokens = append(hostTokens, id+"|"+string(h.State)+"|"+strings.Join(h.NetworkIDs(), ","))
	}
	sort.Strings(hostTokens)

	linkKeys := make([]string, 0, len(links))
	for key, l := range links {
		linkKeys = append(linkKeys, key+"|"+strings.Join(l.ViaIDs(), ","))
	}
	sort.Strings(linkKeys)

	h := sha256.New()
	for _, section := range [][]string{networkIDs, hostTokens, linkKeys, {opts.Token()}} {
		h.Write([]byte(strings.Join(section, "\n")))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
