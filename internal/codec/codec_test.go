package codec

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/domain"
)

func sampleTopology(t *testing.T) *domain.Topology {
	t.Helper()
	backend, err := domain.NewNetwork("n1", "app-backend", nil)
	require.NoError(t, err)
	bare, err := domain.NewNetwork("n2", "", nil)
	require.NoError(t, err)

	web := domain.NewHost("c1", "web", domain.HostStateRunning)
	web.Source = "docker"
	web.DNS = []string{"web", "frontend"}
	web.Data = container.InspectResponse{ContainerJSONBase: &container.ContainerJSONBase{ID: "c1", Name: "/web"}}
	web.AddNetwork(backend)
	web.AddNetwork(bare)

	db := domain.NewHost("c2", "db", domain.HostStateStopped)
	db.Source = "docker"
	db.Data = container.InspectResponse{ContainerJSONBase: &container.ContainerJSONBase{ID: "c2", Name: "/db"}}
	db.AddNetwork(backend)

	router := domain.NewHost("nmap-10_0_0_1", "router", domain.HostStateRunning)
	router.Source = "nmap"
	router.Data = adapter.ScannedHost{IP: "10.0.0.1", Role: "router"}

	hosts := map[string]*domain.Host{web.ID: web, db.ID: db, router.ID: router}
	networks := map[string]*domain.Network{backend.ID: backend, bare.ID: bare}
	link := &domain.Link{Source: web, Target: db, Via: []*domain.Network{backend}}
	links := map[string]*domain.Link{link.Key(): link}

	topo := domain.NewTopology(hosts, networks, links, domain.DefaultDisplayOptions())
	topo.GeneratedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return topo
}

func TestForFormat(t *testing.T) {
	for _, name := range Formats() {
		exporter, err := ForFormat(name)
		require.NoError(t, err)
		assert.Equal(t, name, exporter.Format())
		assert.NotEmpty(t, exporter.ContentType())
	}

	_, err := ForFormat("toml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, []string{"ansible-inventory", "json", "yaml"}, Formats())
}

func TestJSONCodec_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(sampleTopology(t), &buf))

	var decoded struct {
		Hosts []struct {
			ID       string   `json:"id"`
			Networks []string `json:"networks"`
		} `json:"hosts"`
		Links []struct {
			Source string   `json:"source"`
			Target string   `json:"target"`
			Via    []string `json:"via"`
		} `json:"links"`
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.Hosts, 3)
	assert.Equal(t, "c1", decoded.Hosts[0].ID)
	assert.Equal(t, []string{"n1", "n2"}, decoded.Hosts[0].Networks)
	require.Len(t, decoded.Links, 1)
	assert.Equal(t, "c1", decoded.Links[0].Source)
	assert.Equal(t, []string{"n1"}, decoded.Links[0].Via)
	assert.NotEmpty(t, decoded.Fingerprint)
}

func TestYAMLCodec_Export(t *testing.T) {
	topo := sampleTopology(t)
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(topo, &buf))

	var decoded yamlTopology
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, topo.Fingerprint, decoded.Fingerprint)
	assert.True(t, decoded.GeneratedAt.Equal(topo.GeneratedAt))
	require.Len(t, decoded.Hosts, 3)
	assert.Equal(t, yamlHost{
		ID:       "c1",
		Name:     "web",
		State:    "running",
		Source:   "docker",
		DNS:      []string{"web", "frontend"},
		Networks: []string{"n1", "n2"},
	}, decoded.Hosts[0])
	require.Len(t, decoded.Networks, 2)
	assert.Equal(t, "app-backend", decoded.Networks[0].Name)
	assert.Equal(t, []string{"c1", "c2"}, decoded.Networks[0].Hosts)
	assert.Equal(t, []yamlLink{{Source: "c1", Target: "c2", Via: []string{"n1"}}}, decoded.Links)
	assert.NotContains(t, buf.String(), "data:")
}

func TestAnsibleCodec_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewAnsibleCodec().Export(sampleTopology(t), &buf))

	var inv ansibleInventory
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &inv))

	backend, ok := inv.All.Children["app_backend"]
	require.True(t, ok, "network names are sanitized into group names")
	require.Len(t, backend.Hosts, 2)
	web := backend.Hosts["web"]
	assert.Equal(t, "web", web.AnsibleHost)
	assert.Equal(t, dockerConnection, web.Vars["ansible_connection"])
	assert.Equal(t, "c1", web.Vars["heimdall_id"])
	assert.Equal(t, "stopped", backend.Hosts["db"].Vars["heimdall_state"])

	unnamed, ok := inv.All.Children["n2"]
	require.True(t, ok, "a network without a name is grouped by id")
	assert.Contains(t, unnamed.Hosts, "web")

	ungrouped := inv.All.Children[ungroupedGroup]
	router := ungrouped.Hosts["router"]
	assert.Equal(t, "10.0.0.1", router.AnsibleHost)
	assert.Equal(t, "router", router.Vars["role"])
	assert.NotContains(t, router.Vars, "ansible_connection")
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "my_net_1", groupName("my-net.1"))
	assert.Equal(t, "bridge", groupName("bridge"))
}
