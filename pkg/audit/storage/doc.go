// Package storage provides audit.Storage backends.
//
//   - SQLite: durable single-node storage (mattn/go-sqlite3)
//   - Memory: in-process storage for tests and ephemeral runs
//
// Both backends are append-only. The SQLite schema installs triggers that
// abort any UPDATE or DELETE on the audit table, and neither backend exposes
// a mutation other than Append.
//
// Entries are ordered by (timestamp, sequence). The sequence is assigned at
// append time and is strictly increasing per store.
package storage
