// Package repository defines the data access interfaces for heimdall.
//
// The repository mirrors the most recent topology snapshot that changed.
// It is not a history: every save replaces the previous snapshot in one
// transaction. The mirror exists so hosts can be queried by state, network
// and source without walking the in-memory snapshot.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Repository on modernc.org/sqlite. The
// default database is in-memory, so nothing survives a restart; a file
// path may be configured for inspection with external tools.
package repository
