package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/theredcat/heimdall/internal/domain"
)

const (
	// DefaultCacheTTL bounds how often the list calls reach the daemon
	DefaultCacheTTL = 2 * time.Second

	defaultFetchTimeout = 30 * time.Second

	cacheKeyContainers = "containers"
	cacheKeyNetworks   = "networks"
)

// dockerClient is the subset of the Docker SDK client the source uses
type dockerClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerPause(ctx context.Context, containerID string) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	DaemonHost() string
	ClientVersion() string
	Close() error
}

var newDockerClientFn = func(opts ...client.Opt) (dockerClient, error) {
	return client.NewClientWithOpts(opts...)
}

// DockerConfig configures a DockerSource
type DockerConfig struct {
	// Name identifies the source; defaults to "docker"
	Name string
	// Host is the daemon address; empty uses DOCKER_HOST or the default socket
	Host string
	// CacheTTL is the lifetime of cached list results
	CacheTTL time.Duration
	// FetchTimeout bounds a single list fetch
	FetchTimeout time.Duration
	// LinkByEnv infers links from environment values that mention an alias
	LinkByEnv bool
	// LinkLabelPrefix infers links from labels whose key has this prefix
	// and whose value is a comma separated list of aliases
	LinkLabelPrefix string
}

// DockerSource discovers containers and networks from a Docker Engine
// and performs control actions on containers.
type DockerSource struct {
	name     string
	cfg      DockerConfig
	client   dockerClient
	networks *domain.NetworkRegistry
	logger   zerolog.Logger

	containers *ttlCache[[]container.InspectResponse]
	netList    *ttlCache[[]network.Summary]

	dial dialFunc
}

// NewDockerSource connects to the daemon described by cfg
func NewDockerSource(cfg DockerConfig, registry *domain.NetworkRegistry, logger zerolog.Logger) (*DockerSource, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := newDockerClientFn(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newDockerSource(cfg, cli, registry, logger, time.Now), nil
}

func newDockerSource(cfg DockerConfig, cli dockerClient, registry *domain.NetworkRegistry, logger zerolog.Logger, now func() time.Time) *DockerSource {
	if cfg.Name == "" {
		cfg.Name = "docker"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	return &DockerSource{
		name:       cfg.Name,
		cfg:        cfg,
		client:     cli,
		networks:   registry,
		logger:     logger.With().Str("source", cfg.Name).Logger(),
		containers: newTTLCache[[]container.InspectResponse](cfg.Name+"/"+cacheKeyContainers, cfg.CacheTTL, cfg.FetchTimeout, now),
		netList:    newTTLCache[[]network.Summary](cfg.Name+"/"+cacheKeyNetworks, cfg.CacheTTL, cfg.FetchTimeout, now),
		dial:       dialContext,
	}
}

// Name returns the source identifier
func (d *DockerSource) Name() string {
	return d.name
}

// Close releases the client connection
func (d *DockerSource) Close() error {
	return d.client.Close()
}

// DaemonHost returns the daemon address in use
func (d *DockerSource) DaemonHost() string {
	return d.client.DaemonHost()
}

// fetchContainers lists every container, then inspects each one concurrently.
// A single failed inspect fails the whole fetch.
func (d *DockerSource) fetchContainers(ctx context.Context) ([]container.InspectResponse, error) {
	summaries, err := d.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", classify(err))
	}

	details := make([]container.InspectResponse, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	for i, summary := range summaries {
		g.Go(func() error {
			inspect, err := d.client.ContainerInspect(gctx, summary.ID)
			if err != nil {
				return fmt.Errorf("inspect container %s: %w", summary.ID, classify(err))
			}
			details[i] = inspect
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Debug().Int("containers", len(details)).Msg("Loaded containers")
	return details, nil
}

func (d *DockerSource) fetchNetworks(ctx context.Context) ([]network.Summary, error) {
	nets, err := d.client.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", classify(err))
	}
	return nets, nil
}

// ListHosts returns one host per container
func (d *DockerSource) ListHosts(ctx context.Context) ([]*domain.Host, error) {
	containers, err := d.containers.Get(ctx, d.fetchContainers)
	if err != nil {
		return nil, err
	}

	hosts := make([]*domain.Host, 0, len(containers))
	for _, c := range containers {
		if c.ContainerJSONBase == nil {
			continue
		}
		hosts = append(hosts, d.hostFromContainer(c))
	}
	return hosts, nil
}

// ListNetworks returns the daemon's networks, interned through the registry
func (d *DockerSource) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	nets, err := d.netList.Get(ctx, d.fetchNetworks)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Network, 0, len(nets))
	for _, raw := range nets {
		n, err := d.networks.Intern(raw.ID, raw.Name, raw)
		if err != nil {
			d.logger.Debug().Err(err).Str("network", raw.Name).Msg("Skipping network without id")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (d *DockerSource) hostFromContainer(c container.InspectResponse) *domain.Host {
	status, health := containerStatus(c)

	host := domain.NewHost(c.ID, strings.TrimPrefix(c.Name, "/"), MapState(status, health))
	host.Source = d.name
	host.Controller = d
	host.Data = c
	host.DNS = containerAliases(c)

	// A created container has never been started and reports no usable attachments.
	if status == "created" {
		d.logger.Debug().Str("container", c.ID).Msg("Skipping networks of created container")
		return host
	}

	for _, name := range endpointNames(c) {
		ep := c.NetworkSettings.Networks[name]
		n, err := d.networks.Intern(ep.NetworkID, name, nil)
		if err != nil {
			d.logger.Debug().Str("container", c.ID).Str("network", name).Msg("Skipping endpoint without network id")
			continue
		}
		host.AddNetwork(n)
	}
	return host
}

// MapState maps a raw container status and health status to a lifecycle
// state. It is total: anything unrecognised maps to unknown.
func MapState(status, health string) domain.HostState {
	switch status {
	case "running":
		if health == "unhealthy" {
			return domain.HostStateUnhealthy
		}
		return domain.HostStateRunning
	case "paused":
		return domain.HostStateSuspended
	case "exited":
		return domain.HostStateStopped
	}
	return domain.HostStateUnknown
}

func containerStatus(c container.InspectResponse) (status, health string) {
	if c.ContainerJSONBase == nil || c.State == nil {
		return "", ""
	}
	status = string(c.State.Status)
	if c.State.Health != nil {
		health = string(c.State.Health.Status)
	}
	return status, health
}

// endpointNames returns the container's network names, sorted, skipping nil endpoints
func endpointNames(c container.InspectResponse) []string {
	if c.NetworkSettings == nil {
		return nil
	}
	names := make([]string, 0, len(c.NetworkSettings.Networks))
	for name, ep := range c.NetworkSettings.Networks {
		if ep != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// containerAliases returns every DNS name advertised on the container's
// endpoints, deduplicated, in first-seen order
func containerAliases(c container.InspectResponse) []string {
	seen := make(map[string]bool)
	aliases := []string{}
	for _, name := range endpointNames(c) {
		ep := c.NetworkSettings.Networks[name]
		for _, list := range [][]string{ep.Aliases, ep.DNSNames} {
			for _, alias := range list {
				if alias == "" || seen[alias] {
					continue
				}
				seen[alias] = true
				aliases = append(aliases, alias)
			}
		}
	}
	return aliases
}

// classify tags a client error as a transport failure or a daemon rejection
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrBackendUnreachable) || errors.Is(err, domain.ErrBackendRejected) {
		return err
	}
	if client.IsErrConnectionFailed(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnreachable, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrBackendRejected, err)
}
