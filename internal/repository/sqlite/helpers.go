package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/theredcat/heimdall/internal/repository"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals interface to nullable JSON string
// Returns empty NullString for nil values and empty slices
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	if s, ok := v.([]string); ok && len(s) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Host Row Scanner
// ============================================================================
//
// CRITICAL: Column order must match between hostColumns and scanArgs().

// hostColumns lists the columns scanned into hostRow, prefixed for joins
const hostColumns = `h.id, h.name, h.state, h.source, h.dns, h.data`

// hostRow holds all columns from a host query for scanning
type hostRow struct {
	ID       string
	Name     string
	State    string
	Source   sql.NullString
	DNSJSON  sql.NullString
	DataJSON sql.NullString
}

// scanArgs returns pointers for sql.Rows.Scan in hostColumns order
func (r *hostRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.Name,
		&r.State,
		&r.Source,
		&r.DNSJSON,
		&r.DataJSON,
	}
}

// toRecord converts the row; networks are filled in by the caller
func (r *hostRow) toRecord() (repository.HostRecord, error) {
	rec := repository.HostRecord{
		ID:       r.ID,
		Name:     r.Name,
		State:    r.State,
		Source:   nullToString(r.Source),
		DNS:      []string{},
		Networks: []string{},
	}
	if err := unmarshalJSONField(r.DNSJSON, &rec.DNS); err != nil {
		return rec, err
	}
	if r.DataJSON.Valid && r.DataJSON.String != "" {
		rec.Data = json.RawMessage(r.DataJSON.String)
	}
	return rec, nil
}
