package adapter

import "github.com/theredcat/heimdall/internal/domain"

// Capability names one thing a source can do
type Capability string

const (
	CapabilityHosts    Capability = "hosts"
	CapabilityNetworks Capability = "networks"
	CapabilityLinks    Capability = "links"
	CapabilityControl  Capability = "control"
	CapabilityFollow   Capability = "follow_logs"
)

// Capabilities holds the typed views of a source. A nil field means the
// source does not implement that capability.
type Capabilities struct {
	Hosts    HostLister
	Networks NetworkLister
	Links    LinkInferrer
	Control  domain.HostController
	Follow   domain.LogFollower
}

// Inspect resolves the capabilities of src by type assertion
func Inspect(src Source) Capabilities {
	var caps Capabilities
	if v, ok := src.(HostLister); ok {
		caps.Hosts = v
	}
	if v, ok := src.(NetworkLister); ok {
		caps.Networks = v
	}
	if v, ok := src.(LinkInferrer); ok {
		caps.Links = v
	}
	if v, ok := src.(domain.HostController); ok {
		caps.Control = v
	}
	if v, ok := src.(domain.LogFollower); ok {
		caps.Follow = v
	}
	return caps
}

// Discovers reports whether at least one discovery capability is present
func (c Capabilities) Discovers() bool {
	return c.Hosts != nil || c.Networks != nil || c.Links != nil
}

// Has reports whether capability cap is present
func (c Capabilities) Has(cap Capability) bool {
	switch cap {
	case CapabilityHosts:
		return c.Hosts != nil
	case CapabilityNetworks:
		return c.Networks != nil
	case CapabilityLinks:
		return c.Links != nil
	case CapabilityControl:
		return c.Control != nil
	case CapabilityFollow:
		return c.Follow != nil
	}
	return false
}

// List returns the present capabilities in a fixed order
func (c Capabilities) List() []Capability {
	var out []Capability
	for _, cap := range []Capability{CapabilityHosts, CapabilityNetworks, CapabilityLinks, CapabilityControl, CapabilityFollow} {
		if c.Has(cap) {
			out = append(out, cap)
		}
	}
	return out
}
