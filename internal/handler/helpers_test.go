package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/repository/sqlite"
	"github.com/theredcat/heimdall/internal/service"
	"github.com/theredcat/heimdall/internal/stream"
)

// fakeSource reports a fixed host and network list
type fakeSource struct {
	hosts    []*domain.Host
	networks []*domain.Network
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ListHosts(context.Context) ([]*domain.Host, error) {
	return f.hosts, nil
}

func (f *fakeSource) ListNetworks(context.Context) ([]*domain.Network, error) {
	return f.networks, nil
}

// fakeController answers control calls with canned results
type fakeController struct {
	mu    sync.Mutex
	calls []string
	since time.Time
}

func (c *fakeController) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeController) StopHost(_ context.Context, id string) (domain.ActionStatus, error) {
	c.record("stop:" + id)
	return domain.ActionSuccess, nil
}

func (c *fakeController) StartHost(_ context.Context, id string) (domain.ActionStatus, error) {
	c.record("start:" + id)
	return domain.ActionNotSupported, nil
}

func (c *fakeController) PauseHost(_ context.Context, id string) (domain.ActionStatus, error) {
	c.record("pause:" + id)
	return domain.ActionFail, fmt.Errorf("pause %s: %w: container is not running", id, domain.ErrBackendRejected)
}

func (c *fakeController) DeleteHost(_ context.Context, id string) (domain.ActionStatus, error) {
	c.record("delete:" + id)
	return domain.ActionSuccess, nil
}

func (c *fakeController) GetLogs(_ context.Context, id string, since time.Time) ([]domain.LogLine, error) {
	c.mu.Lock()
	c.since = since
	c.mu.Unlock()
	return []domain.LogLine{
		{Stream: domain.StreamStdout, Data: "ready"},
		{Stream: domain.StreamStderr, Data: "warning"},
	}, nil
}

func (c *fakeController) GetInteractiveSession(context.Context, string) (domain.Session, error) {
	client, server := net.Pipe()
	go func() {
		io.Copy(server, server)
		server.Close()
	}()
	return client, nil
}

func (c *fakeController) ExecuteCommand(_ context.Context, _ string, command string) (*domain.CommandOutput, error) {
	if command == "garbage" {
		return nil, fmt.Errorf("exec: %w: invalid channel 9 at offset 0", stream.ErrMalformedFrame)
	}
	return &domain.CommandOutput{
		Output: []byte("out\nerr\n"),
		Chunks: []domain.OutputChunk{
			{Stream: domain.StreamStdout, Data: []byte("out\n")},
			{Stream: domain.StreamStderr, Data: []byte("err\n")},
		},
	}, nil
}

func (c *fakeController) FollowLogs(context.Context, string) (domain.Session, error) {
	return readOnlySession{strings.NewReader("line one\nline two\n")}, nil
}

type readOnlySession struct{ io.Reader }

func (readOnlySession) Write([]byte) (int, error) { return 0, errors.New("read only") }
func (readOnlySession) Close() error              { return nil }

type testServer struct {
	*httptest.Server
	engine *service.Engine
	ctrl   *fakeController
}

// newTestServer serves web (running) and db (stopped) on network n1 named
// frontend, plus a scanned host without a controller
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctrl := &fakeController{}
	n1, err := domain.NewNetwork("n1", "frontend", nil)
	require.NoError(t, err)

	web := domain.NewHost("web", "web", domain.HostStateRunning)
	web.Source = "fake"
	web.Controller = ctrl
	web.AddNetwork(n1)
	db := domain.NewHost("db", "db", domain.HostStateStopped)
	db.Source = "fake"
	db.Controller = ctrl
	db.AddNetwork(n1)
	scanned := domain.NewHost("scanned", "scanned", domain.HostStateRunning)
	scanned.Source = "nmap"

	engine := service.NewEngine(zerolog.Nop(), service.WithSnapshotStore(repo))
	require.NoError(t, engine.AddSource(&fakeSource{
		hosts:    []*domain.Host{web, db, scanned},
		networks: []*domain.Network{n1},
	}))
	_, err = engine.Refresh(context.Background())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewTopologyHandler(engine, repo, zerolog.Nop()).Register(mux)
	srv := httptest.NewServer(Chain(mux, Recover, CORS, Logger))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, engine: engine, ctrl: ctrl}
}

func (s *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
