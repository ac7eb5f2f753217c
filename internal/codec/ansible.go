package codec

import (
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	dockerConnection = "community.docker.docker"
	ungroupedGroup   = "ungrouped"
)

// AnsibleCodec exports the topology as an Ansible YAML inventory.
// Every network becomes a group holding its member hosts.
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

// ContentType is the media type of the output
func (c *AnsibleCodec) ContentType() string {
	return "application/yaml"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
	Vars     map[string]interface{}     `yaml:"vars,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
	Vars  map[string]interface{} `yaml:"vars,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string                 `yaml:"ansible_host,omitempty"`
	Vars        map[string]interface{} `yaml:",inline"`
}

// Export exports the topology to Ansible inventory format
func (c *AnsibleCodec) Export(t *domain.Topology, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
		},
	}

	for _, h := range t.Hosts {
		name := inventoryName(h)
		entry := c.hostEntry(h)

		ids := h.NetworkIDs()
		if len(ids) == 0 {
			c.addToGroup(inv.All.Children, ungroupedGroup, name, entry)
			continue
		}
		for _, id := range ids {
			group := id
			if n := h.Networks[id]; n != nil && n.Name() != "" {
				group = n.Name()
			}
			c.addToGroup(inv.All.Children, groupName(group), name, entry)
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}

func (c *AnsibleCodec) addToGroup(groups map[string]ansibleGroupDef, group, name string, host ansibleHost) {
	def, ok := groups[group]
	if !ok {
		def = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
	}
	def.Hosts[name] = host
	groups[group] = def
}

// hostEntry picks connection vars from the raw backend document
func (c *AnsibleCodec) hostEntry(h *domain.Host) ansibleHost {
	host := ansibleHost{
		Vars: map[string]interface{}{
			"heimdall_id":    h.ID,
			"heimdall_state": string(h.State),
		},
	}
	if h.Source != "" {
		host.Vars["heimdall_source"] = h.Source
	}

	switch data := h.Data.(type) {
	case container.InspectResponse:
		host.AnsibleHost = inventoryName(h)
		host.Vars["ansible_connection"] = dockerConnection
	case adapter.ScannedHost:
		host.AnsibleHost = data.IP
		if data.Role != "" {
			host.Vars["role"] = data.Role
		}
	}
	return host
}

func inventoryName(h *domain.Host) string {
	if h.Name != "" {
		return h.Name
	}
	return h.ID
}

// groupName maps a network name to a valid Ansible group name
func groupName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
