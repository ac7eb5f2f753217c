package domain

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// HostState is the lifecycle state of a host
type HostState string

const (
	HostStateRunning   HostState = "running"
	HostStateStopped   HostState = "stopped"
	HostStateUnhealthy HostState = "unhealthy"
	HostStateSuspended HostState = "suspended"
	HostStateUnknown   HostState = "unknown"
)

// Valid reports whether s is one of the known lifecycle states
func (s HostState) Valid() bool {
	switch s {
	case HostStateRunning, HostStateStopped, HostStateUnhealthy, HostStateSuspended, HostStateUnknown:
		return true
	}
	return false
}

// Host is a discovered workload (a container for the Docker source).
// A Host is rebuilt by its source on every fetch; identity across
// refreshes is carried by ID only.
type Host struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	DNS    []string  `json:"dns"`
	State  HostState `json:"state"`
	Source string    `json:"source"`

	// Data is the raw backend document the host was built from.
	Data any `json:"data,omitempty"`

	// Controller routes control actions back to the owning source.
	Controller HostController `json:"-"`

	// Networks is keyed by network id.
	Networks map[string]*Network `json:"-"`
}

// NewHost creates a host with an empty network mapping
func NewHost(id, name string, state HostState) *Host {
	return &Host{
		ID:       id,
		Name:     name,
		DNS:      []string{},
		State:    state,
		Networks: make(map[string]*Network),
	}
}

// AddNetwork attaches the host to n. Only the host side is recorded;
// network members are derived from hosts when a snapshot is built.
func (h *Host) AddNetwork(n *Network) {
	if h.Networks == nil {
		h.Networks = make(map[string]*Network)
	}
	h.Networks[n.ID] = n
}

// NetworkIDs returns the ids of the attached networks, sorted
func (h *Host) NetworkIDs() []string {
	ids := make([]string, 0, len(h.Networks))
	for id := range h.Networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasAlias reports whether name is one of the host's DNS aliases
func (h *Host) HasAlias(name string) bool {
	for _, alias := range h.DNS {
		if alias == name {
			return true
		}
	}
	return false
}

// Control returns the controller for the host, never nil.
// Hosts without a controller answer every action with "not supported".
func (h *Host) Control() HostController {
	if h.Controller == nil {
		return unsupportedController{}
	}
	return h.Controller
}

// Stop stops the host through its source
func (h *Host) Stop(ctx context.Context) (ActionStatus, error) {
	return h.Control().StopHost(ctx, h.ID)
}

// Start starts the host through its source
func (h *Host) Start(ctx context.Context) (ActionStatus, error) {
	return h.Control().StartHost(ctx, h.ID)
}

// Pause suspends the host through its source
func (h *Host) Pause(ctx context.Context) (ActionStatus, error) {
	return h.Control().PauseHost(ctx, h.ID)
}

// Delete removes the host through its source
func (h *Host) Delete(ctx context.Context) (ActionStatus, error) {
	return h.Control().DeleteHost(ctx, h.ID)
}

// Logs returns the host's log lines emitted after since (zero means all)
func (h *Host) Logs(ctx context.Context, since time.Time) ([]LogLine, error) {
	return h.Control().GetLogs(ctx, h.ID, since)
}

// Exec runs a command inside the host
func (h *Host) Exec(ctx context.Context, command string) (*CommandOutput, error) {
	return h.Control().ExecuteCommand(ctx, h.ID, command)
}

// Session opens an interactive session on the host's standard streams
func (h *Host) Session(ctx context.Context) (Session, error) {
	return h.Control().GetInteractiveSession(ctx, h.ID)
}

type hostJSON struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	DNS      []string  `json:"dns"`
	State    HostState `json:"state"`
	Source   string    `json:"source"`
	Networks []string  `json:"networks"`
	Data     any       `json:"data,omitempty"`
}

// MarshalJSON renders networks as a sorted id list
func (h *Host) MarshalJSON() ([]byte, error) {
	dns := h.DNS
	if dns == nil {
		dns = []string{}
	}
	return json.Marshal(hostJSON{
		ID:       h.ID,
		Name:     h.Name,
		DNS:      dns,
		State:    h.State,
		Source:   h.Source,
		Networks: h.NetworkIDs(),
		Data:     h.Data,
	})
}
