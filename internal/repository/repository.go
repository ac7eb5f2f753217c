package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/theredcat/heimdall/internal/domain"
)

// HostFilter narrows a host query. Empty fields match everything.
// Network matches either a network id or a network name.
type HostFilter struct {
	State   string
	Network string
	Source  string
}

// HostRecord is a host row of the stored snapshot
type HostRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	State    string          `json:"state"`
	Source   string          `json:"source"`
	DNS      []string        `json:"dns"`
	Networks []string        `json:"networks"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// SnapshotInfo describes the stored snapshot
type SnapshotInfo struct {
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
	Hosts       int       `json:"hosts"`
	Networks    int       `json:"networks"`
	Links       int       `json:"links"`
}

// Repository mirrors the latest topology snapshot and answers filtered queries on it
type Repository interface {
	// Write operations
	SaveSnapshot(ctx context.Context, t *domain.Topology) error

	// Read operations
	ListHosts(ctx context.Context, filter HostFilter) ([]HostRecord, error)
	SnapshotInfo(ctx context.Context) (*SnapshotInfo, error)

	// Close releases resources
	Close() error
}
