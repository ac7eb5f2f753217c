package codec

import (
	"fmt"
	"io"
	"time"

	"github.com/theredcat/heimdall/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec exports the topology as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType is the media type of the output
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlTopology represents the YAML structure for a snapshot
type yamlTopology struct {
	Fingerprint string                `yaml:"fingerprint"`
	GeneratedAt time.Time             `yaml:"generated_at"`
	Options     domain.DisplayOptions `yaml:"options"`
	Hosts       []yamlHost            `yaml:"hosts"`
	Networks    []yamlNetwork         `yaml:"networks"`
	Links       []yamlLink            `yaml:"links"`
}

type yamlHost struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	State    string   `yaml:"state"`
	Source   string   `yaml:"source,omitempty"`
	DNS      []string `yaml:"dns,omitempty"`
	Networks []string `yaml:"networks,omitempty"`
}

type yamlNetwork struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts,omitempty"`
}

type yamlLink struct {
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Via    []string `yaml:"via,omitempty"`
}

// Export exports the topology to YAML. Raw backend documents are left out.
func (c *YAMLCodec) Export(t *domain.Topology, w io.Writer) error {
	yt := yamlTopology{
		Fingerprint: t.Fingerprint,
		GeneratedAt: t.GeneratedAt,
		Options:     t.Options,
		Hosts:       make([]yamlHost, 0, len(t.Hosts)),
		Networks:    make([]yamlNetwork, 0, len(t.Networks)),
		Links:       make([]yamlLink, 0, len(t.Links)),
	}

	for _, h := range t.Hosts {
		yt.Hosts = append(yt.Hosts, yamlHost{
			ID:       h.ID,
			Name:     h.Name,
			State:    string(h.State),
			Source:   h.Source,
			DNS:      h.DNS,
			Networks: h.NetworkIDs(),
		})
	}

	for _, n := range t.Networks {
		yt.Networks = append(yt.Networks, yamlNetwork{
			ID:    n.ID,
			Name:  n.Name(),
			Hosts: n.HostIDs(),
		})
	}

	for _, l := range t.Links {
		yt.Links = append(yt.Links, yamlLink{
			Source: l.Source.ID,
			Target: l.Target.ID,
			Via:    l.ViaIDs(),
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yt); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
