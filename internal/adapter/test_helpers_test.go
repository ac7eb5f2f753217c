package adapter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/theredcat/heimdall/internal/domain"
)

type fakeDockerClient struct {
	daemonHost          string
	clientVersion       string
	containerListFn     func(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error)
	containerInspectFn  func(ctx context.Context, id string) (containertypes.InspectResponse, error)
	networkListFn       func(ctx context.Context, opts network.ListOptions) ([]network.Summary, error)
	containerStartFn    func(ctx context.Context, id string, opts containertypes.StartOptions) error
	containerStopFn     func(ctx context.Context, id string, opts containertypes.StopOptions) error
	containerPauseFn    func(ctx context.Context, id string) error
	containerWaitFn     func(ctx context.Context, id string, cond containertypes.WaitCondition) (<-chan containertypes.WaitResponse, <-chan error)
	containerLogsFn     func(ctx context.Context, id string, opts containertypes.LogsOptions) (io.ReadCloser, error)
	containerExecFn     func(ctx context.Context, id string, opts containertypes.ExecOptions) (containertypes.ExecCreateResponse, error)
	containerExecAttach func(ctx context.Context, execID string, opts containertypes.ExecAttachOptions) (types.HijackedResponse, error)
	closeFn             func() error
}

func (f *fakeDockerClient) ContainerList(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error) {
	if f.containerListFn == nil {
		return nil, errors.New("unexpected ContainerList call")
	}
	return f.containerListFn(ctx, opts)
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, id string) (containertypes.InspectResponse, error) {
	if f.containerInspectFn == nil {
		return containertypes.InspectResponse{}, errors.New("unexpected ContainerInspect call")
	}
	return f.containerInspectFn(ctx, id)
}

func (f *fakeDockerClient) NetworkList(ctx context.Context, opts network.ListOptions) ([]network.Summary, error) {
	if f.networkListFn == nil {
		return nil, errors.New("unexpected NetworkList call")
	}
	return f.networkListFn(ctx, opts)
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, id string, opts containertypes.StartOptions) error {
	if f.containerStartFn == nil {
		return errors.New("unexpected ContainerStart call")
	}
	return f.containerStartFn(ctx, id, opts)
}

func (f *fakeDockerClient) ContainerStop(ctx context.Context, id string, opts containertypes.StopOptions) error {
	if f.containerStopFn == nil {
		return errors.New("unexpected ContainerStop call")
	}
	return f.containerStopFn(ctx, id, opts)
}

func (f *fakeDockerClient) ContainerPause(ctx context.Context, id string) error {
	if f.containerPauseFn == nil {
		return errors.New("unexpected ContainerPause call")
	}
	return f.containerPauseFn(ctx, id)
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, id string, cond containertypes.WaitCondition) (<-chan containertypes.WaitResponse, <-chan error) {
	if f.containerWaitFn == nil {
		errC := make(chan error, 1)
		errC <- errors.New("unexpected ContainerWait call")
		return make(chan containertypes.WaitResponse), errC
	}
	return f.containerWaitFn(ctx, id, cond)
}

func (f *fakeDockerClient) ContainerLogs(ctx context.Context, id string, opts containertypes.LogsOptions) (io.ReadCloser, error) {
	if f.containerLogsFn == nil {
		return nil, errors.New("unexpected ContainerLogs call")
	}
	return f.containerLogsFn(ctx, id, opts)
}

func (f *fakeDockerClient) ContainerExecCreate(ctx context.Context, id string, opts containertypes.ExecOptions) (containertypes.ExecCreateResponse, error) {
	if f.containerExecFn == nil {
		return containertypes.ExecCreateResponse{}, errors.New("unexpected ContainerExecCreate call")
	}
	return f.containerExecFn(ctx, id, opts)
}

func (f *fakeDockerClient) ContainerExecAttach(ctx context.Context, execID string, opts containertypes.ExecAttachOptions) (types.HijackedResponse, error) {
	if f.containerExecAttach == nil {
		return types.HijackedResponse{}, errors.New("unexpected ContainerExecAttach call")
	}
	return f.containerExecAttach(ctx, execID, opts)
}

func (f *fakeDockerClient) DaemonHost() string {
	return f.daemonHost
}

func (f *fakeDockerClient) ClientVersion() string {
	return f.clientVersion
}

func (f *fakeDockerClient) Close() error {
	if f.closeFn == nil {
		return nil
	}
	return f.closeFn()
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

type containerSpec struct {
	id       string
	name     string
	status   string
	health   string
	env      []string
	labels   map[string]string
	tty      bool
	networks map[string]*network.EndpointSettings
}

func endpoint(networkID string, aliases ...string) *network.EndpointSettings {
	return &network.EndpointSettings{NetworkID: networkID, Aliases: aliases}
}

func makeContainer(spec containerSpec) containertypes.InspectResponse {
	state := &containertypes.State{Status: containertypes.ContainerState(spec.status)}
	if spec.health != "" {
		state.Health = &containertypes.Health{Status: containertypes.HealthStatus(spec.health)}
	}
	return containertypes.InspectResponse{
		ContainerJSONBase: &containertypes.ContainerJSONBase{
			ID:    spec.id,
			Name:  "/" + spec.name,
			State: state,
		},
		Config: &containertypes.Config{
			Env:    spec.env,
			Labels: spec.labels,
			Tty:    spec.tty,
		},
		NetworkSettings: &containertypes.NetworkSettings{
			Networks: spec.networks,
		},
	}
}

// withContainers wires list and inspect calls of f to the given containers
func withContainers(f *fakeDockerClient, containers ...containertypes.InspectResponse) {
	byID := make(map[string]containertypes.InspectResponse)
	var summaries []containertypes.Summary
	for _, c := range containers {
		byID[c.ID] = c
		summaries = append(summaries, containertypes.Summary{ID: c.ID})
	}
	f.containerListFn = func(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error) {
		return summaries, nil
	}
	f.containerInspectFn = func(ctx context.Context, id string) (containertypes.InspectResponse, error) {
		c, ok := byID[id]
		if !ok {
			return containertypes.InspectResponse{}, errors.New("no such container")
		}
		return c, nil
	}
}

func newTestSource(t *testing.T, f *fakeDockerClient, cfg DockerConfig) (*DockerSource, *domain.NetworkRegistry, *fakeClock) {
	t.Helper()
	registry := domain.NewNetworkRegistry()
	clock := newFakeClock()
	return newDockerSource(cfg, f, registry, zerolog.Nop(), clock.Now), registry, clock
}

type frame struct {
	std  stdcopy.StdType
	data string
}

// frames encodes payloads into the runtime's multiplexed stream format
func frames(t *testing.T, parts ...frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range parts {
		_, err := stdcopy.NewStdWriter(&buf, p.std).Write([]byte(p.data))
		require.NoError(t, err)
	}
	return buf.Bytes()
}

// hijacked wraps raw bytes in a hijacked response backed by a pipe
func hijacked(data []byte) types.HijackedResponse {
	client, server := net.Pipe()
	server.Close()
	return types.HijackedResponse{
		Conn:   client,
		Reader: bufio.NewReader(bytes.NewReader(data)),
	}
}
