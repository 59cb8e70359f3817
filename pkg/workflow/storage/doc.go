// Package storage provides workflow.Store backends:
//
//   - Memory: in-process maps, for tests and single-run CLI use
//   - SQLite: durable single-node storage on modernc.org/sqlite (no cgo)
//   - Postgres: shared storage through gorm
//
// Every backend writes a proposal together with its steps or its order in
// one unit, so readers never see a proposal whose status disagrees with its
// chain.
package storage
