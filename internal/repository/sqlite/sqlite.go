package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/theredcat/heimdall/internal/domain"
	"github.com/theredcat/heimdall/internal/repository"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New creates a new SQLite repository. An empty path or MemoryPath gives an
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := MemoryPath
	if dbPath != "" && dbPath != MemoryPath {
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT NOT NULL,
		source TEXT,
		dns JSON,
		data JSON
	);

	CREATE TABLE IF NOT EXISTS networks (
		id TEXT PRIMARY KEY,
		name TEXT
	);

	CREATE TABLE IF NOT EXISTS host_networks (
		host_id TEXT NOT NULL,
		network_id TEXT NOT NULL,
		PRIMARY KEY (host_id, network_id),
		FOREIGN KEY (host_id) REFERENCES hosts(id) ON DELETE CASCADE,
		FOREIGN KEY (network_id) REFERENCES networks(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS links (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		via JSON,
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES hosts(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES hosts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hosts_state ON hosts(state);
	CREATE INDEX IF NOT EXISTS idx_hosts_source ON hosts(source);
	CREATE INDEX IF NOT EXISTS idx_host_networks_network ON host_networks(network_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot replaces the stored snapshot with t in a single transaction
func (r *Repository) SaveSnapshot(ctx context.Context, t *domain.Topology) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear existing data (order matters due to foreign keys)
	for _, table := range []string{"links", "host_networks", "networks", "hosts", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, n := range t.Networks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO networks (id, name) VALUES (?, ?)`,
			n.ID, stringToNull(n.Name()),
		); err != nil {
			return fmt.Errorf("failed to insert network %s: %w", n.ID, err)
		}
	}

	for _, h := range t.Hosts {
		if err := insertHost(ctx, tx, h); err != nil {
			return err
		}
	}

	for _, l := range t.Links {
		via, err := marshalToNull(l.ViaIDs())
		if err != nil {
			return fmt.Errorf("failed to marshal link via: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO links (source_id, target_id, via) VALUES (?, ?, ?)`,
			l.Source.ID, l.Target.ID, via,
		); err != nil {
			return fmt.Errorf("failed to insert link %s: %w", l.Key(), err)
		}
	}

	meta := map[string]string{
		"fingerprint":  t.Fingerprint,
		"generated_at": t.GeneratedAt.UTC().Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metadata (key, value) VALUES (?, ?)`, key, value,
		); err != nil {
			return fmt.Errorf("failed to insert metadata %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func insertHost(ctx context.Context, tx *sql.Tx, h *domain.Host) error {
	dns, err := marshalToNull(h.DNS)
	if err != nil {
		return fmt.Errorf("failed to marshal dns of %s: %w", h.ID, err)
	}
	data, err := marshalToNull(h.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data of %s: %w", h.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hosts (id, name, state, source, dns, data) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.Name, string(h.State), stringToNull(h.Source), dns, data,
	); err != nil {
		return fmt.Errorf("failed to insert host %s: %w", h.ID, err)
	}

	for _, networkID := range h.NetworkIDs() {
		var name string
		if n := h.Networks[networkID]; n != nil {
			name = n.Name()
		}
		// A host may be attached to a network no source listed this cycle.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO networks (id, name) VALUES (?, ?)`,
			networkID, stringToNull(name),
		); err != nil {
			return fmt.Errorf("failed to insert network %s: %w", networkID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO host_networks (host_id, network_id) VALUES (?, ?)`,
			h.ID, networkID,
		); err != nil {
			return fmt.Errorf("failed to attach %s to network %s: %w", h.ID, networkID, err)
		}
	}
	return nil
}

// ListHosts returns the stored hosts matching filter, ordered by id
func (r *Repository) ListHosts(ctx context.Context, filter repository.HostFilter) ([]repository.HostRecord, error) {
	query := "SELECT " + hostColumns + " FROM hosts h WHERE 1=1"
	args := []interface{}{}

	if filter.State != "" {
		query += " AND h.state = ?"
		args = append(args, filter.State)
	}
	if filter.Source != "" {
		query += " AND h.source = ?"
		args = append(args, filter.Source)
	}
	if filter.Network != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM host_networks hn JOIN networks n ON n.id = hn.network_id
			WHERE hn.host_id = h.id AND (n.id = ? OR n.name = ?))`
		args = append(args, filter.Network, filter.Network)
	}
	query += " ORDER BY h.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	hosts := []repository.HostRecord{}
	index := make(map[string]int)
	for rows.Next() {
		var row hostRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("failed to decode host %s: %w", row.ID, err)
		}
		index[rec.ID] = len(hosts)
		hosts = append(hosts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the only connection before the next query.
	rows.Close()

	if len(hosts) == 0 {
		return hosts, nil
	}
	if err := r.fillNetworks(ctx, hosts, index); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (r *Repository) fillNetworks(ctx context.Context, hosts []repository.HostRecord, index map[string]int) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT host_id, network_id FROM host_networks ORDER BY host_id, network_id`)
	if err != nil {
		return fmt.Errorf("failed to query host networks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hostID, networkID string
		if err := rows.Scan(&hostID, &networkID); err != nil {
			return fmt.Errorf("failed to scan host network: %w", err)
		}
		if i, ok := index[hostID]; ok {
			hosts[i].Networks = append(hosts[i].Networks, networkID)
		}
	}
	return rows.Err()
}

// SnapshotInfo describes the stored snapshot. A repository that never
// saved one returns a zero SnapshotInfo.
func (r *Repository) SnapshotInfo(ctx context.Context) (*repository.SnapshotInfo, error) {
	info := &repository.SnapshotInfo{}

	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM hosts),
			(SELECT COUNT(*) FROM networks),
			(SELECT COUNT(*) FROM links)
	`).Scan(&info.Hosts, &info.Networks, &info.Links)
	if err != nil {
		return nil, fmt.Errorf("failed to count snapshot rows: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		switch key {
		case "fingerprint":
			info.Fingerprint = value
		case "generated_at":
			ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid generated_at %q: %w", value, err)
			}
			info.GeneratedAt = ts
		}
	}
	return info, rows.Err()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
