// Package store provides persistence for parley's local state.
//
// Everything is built on one small byte store, domain.KVStore, with four
// backends:
//   - Memory: process-local map, the default for tests and throwaway runs
//   - FileKV: one file per key under a directory, replaced atomically
//   - Bolt: a single bolt database file
//   - SQLite: a single SQLite database file (pure Go driver)
//
// On top of it sit KeyStore, which keeps password-wrapped signing keys, and
// ReplayJournal, which snapshots the replay guard. Open selects a backend by
// name from configuration.
package store
