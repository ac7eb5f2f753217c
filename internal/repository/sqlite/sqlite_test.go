package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func mustNetwork(t *testing.T, id, name string) *domain.Network {
	t.Helper()
	n, err := domain.NewNetwork(id, name, nil)
	assertNoError(t, err)
	return n
}

// sampleTopology builds web (running, frontend+backend), db (stopped,
// backend) and a scanned router without networks
func sampleTopology(t *testing.T) *domain.Topology {
	t.Helper()
	frontend := mustNetwork(t, "n-front", "frontend")
	backend := mustNetwork(t, "n-back", "backend")

	web := domain.NewHost("web-id", "web", domain.HostStateRunning)
	web.Source = "docker"
	web.DNS = []string{"web", "www"}
	web.Data = map[string]any{"Image": "nginx"}
	web.AddNetwork(frontend)
	web.AddNetwork(backend)

	db := domain.NewHost("db-id", "db", domain.HostStateStopped)
	db.Source = "docker"
	db.AddNetwork(backend)

	router := domain.NewHost("nmap-10_0_0_1", "router", domain.HostStateRunning)
	router.Source = "nmap"

	link := &domain.Link{Source: web, Target: db, Via: []*domain.Network{backend}}
	topo := domain.NewTopology(
		map[string]*domain.Host{web.ID: web, db.ID: db, router.ID: router},
		map[string]*domain.Network{frontend.ID: frontend, backend.ID: backend},
		map[string]*domain.Link{link.Key(): link},
		domain.DefaultDisplayOptions(),
	)
	topo.GeneratedAt = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	return topo
}

func hostIDs(records []repository.HostRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	assertEqual(t, "", nullToString(sql.NullString{}))
	assertEqual(t, "x", nullToString(sql.NullString{String: "x", Valid: true}))
}

func TestStringToNull(t *testing.T) {
	assertEqual(t, sql.NullString{}, stringToNull(""))
	assertEqual(t, sql.NullString{String: "x", Valid: true}, stringToNull("x"))
}

func TestMarshalToNull(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected sql.NullString
	}{
		{"nil", nil, sql.NullString{}},
		{"empty slice", []string{}, sql.NullString{}},
		{"nil slice", []string(nil), sql.NullString{}},
		{"slice", []string{"a"}, sql.NullString{String: `["a"]`, Valid: true}},
		{"map", map[string]int{"k": 1}, sql.NullString{String: `{"k":1}`, Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalToNull(tt.input)
			assertNoError(t, err)
			assertEqual(t, tt.expected, got)
		})
	}
}

func TestHostRowToRecord(t *testing.T) {
	row := hostRow{
		ID:       "a",
		Name:     "alpha",
		State:    "running",
		Source:   sql.NullString{String: "docker", Valid: true},
		DNSJSON:  sql.NullString{String: `["alpha","al"]`, Valid: true},
		DataJSON: sql.NullString{String: `{"Image":"busybox"}`, Valid: true},
	}
	rec, err := row.toRecord()
	assertNoError(t, err)
	assertEqual(t, []string{"alpha", "al"}, rec.DNS)
	assertEqual(t, "docker", rec.Source)
	assertEqual(t, `{"Image":"busybox"}`, string(rec.Data))
	assertEqual(t, []string{}, rec.Networks)

	bare, err := (&hostRow{ID: "b", Name: "b", State: "unknown"}).toRecord()
	assertNoError(t, err)
	assertEqual(t, []string{}, bare.DNS)
	if bare.Data != nil {
		t.Fatalf("expected no data, got %s", bare.Data)
	}

	_, err = (&hostRow{ID: "c", DNSJSON: sql.NullString{String: "{", Valid: true}}).toRecord()
	if err == nil {
		t.Fatal("expected error for malformed dns column")
	}
}

// ============================================================================
// Snapshot Tests
// ============================================================================

func TestSaveSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	topo := sampleTopology(t)

	assertNoError(t, repo.SaveSnapshot(ctx, topo))

	info, err := repo.SnapshotInfo(ctx)
	assertNoError(t, err)
	assertEqual(t, topo.Fingerprint, info.Fingerprint)
	assertEqual(t, 3, info.Hosts)
	assertEqual(t, 2, info.Networks)
	assertEqual(t, 1, info.Links)
	if !info.GeneratedAt.Equal(topo.GeneratedAt) {
		t.Fatalf("expected generated_at %v, got %v", topo.GeneratedAt, info.GeneratedAt)
	}

	hosts, err := repo.ListHosts(ctx, repository.HostFilter{})
	assertNoError(t, err)
	assertEqual(t, []string{"db-id", "nmap-10_0_0_1", "web-id"}, hostIDs(hosts))

	web := hosts[2]
	assertEqual(t, []string{"n-back", "n-front"}, web.Networks)
	assertEqual(t, []string{"web", "www"}, web.DNS)
	var data map[string]any
	assertNoError(t, json.Unmarshal(web.Data, &data))
	assertEqual(t, "nginx", data["Image"])
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.SaveSnapshot(ctx, sampleTopology(t)))

	only := domain.NewHost("solo", "solo", domain.HostStateSuspended)
	next := domain.NewTopology(map[string]*domain.Host{only.ID: only}, nil, nil, domain.DefaultDisplayOptions())
	assertNoError(t, repo.SaveSnapshot(ctx, next))

	hosts, err := repo.ListHosts(ctx, repository.HostFilter{})
	assertNoError(t, err)
	assertEqual(t, []string{"solo"}, hostIDs(hosts))

	info, err := repo.SnapshotInfo(ctx)
	assertNoError(t, err)
	assertEqual(t, next.Fingerprint, info.Fingerprint)
	assertEqual(t, 0, info.Networks)
	assertEqual(t, 0, info.Links)
}

func TestSaveSnapshotUnlistedNetwork(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n := mustNetwork(t, "n-hidden", "hidden")
	h := domain.NewHost("h", "h", domain.HostStateRunning)
	h.AddNetwork(n)
	topo := domain.NewTopology(map[string]*domain.Host{h.ID: h}, nil, nil, domain.DefaultDisplayOptions())

	assertNoError(t, repo.SaveSnapshot(ctx, topo))

	hosts, err := repo.ListHosts(ctx, repository.HostFilter{Network: "hidden"})
	assertNoError(t, err)
	assertEqual(t, []string{"h"}, hostIDs(hosts))
}

func TestListHostsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.SaveSnapshot(ctx, sampleTopology(t)))

	tests := []struct {
		name     string
		filter   repository.HostFilter
		expected []string
	}{
		{"state", repository.HostFilter{State: "running"}, []string{"nmap-10_0_0_1", "web-id"}},
		{"source", repository.HostFilter{Source: "docker"}, []string{"db-id", "web-id"}},
		{"network by id", repository.HostFilter{Network: "n-back"}, []string{"db-id", "web-id"}},
		{"network by name", repository.HostFilter{Network: "frontend"}, []string{"web-id"}},
		{"combined", repository.HostFilter{State: "stopped", Network: "backend", Source: "docker"}, []string{"db-id"}},
		{"no match", repository.HostFilter{State: "unhealthy"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := repo.ListHosts(ctx, tt.filter)
			assertNoError(t, err)
			assertEqual(t, tt.expected, hostIDs(hosts))
		})
	}
}

func TestSnapshotInfoEmpty(t *testing.T) {
	repo := newTestRepo(t)

	info, err := repo.SnapshotInfo(context.Background())
	assertNoError(t, err)
	assertEqual(t, repository.SnapshotInfo{}, *info)
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heimdall.db")
	repo, err := New(path)
	assertNoError(t, err)
	assertNoError(t, repo.SaveSnapshot(context.Background(), sampleTopology(t)))
	assertNoError(t, repo.Close())

	reopened, err := New(path)
	assertNoError(t, err)
	defer reopened.Close()
	hosts, err := reopened.ListHosts(context.Background(), repository.HostFilter{Source: "nmap"})
	assertNoError(t, err)
	assertEqual(t, []string{"nmap-10_0_0_1"}, hostIDs(hosts))
}

func TestConcurrentSaveAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	topo := sampleTopology(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- repo.SaveSnapshot(ctx, topo)
		}()
		go func() {
			defer wg.Done()
			_, err := repo.ListHosts(ctx, repository.HostFilter{State: "running"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assertNoError(t, err)
	}
}
