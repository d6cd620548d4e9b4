// Package store provides result persistence for terminal delegations.
//
// Implementations of core.ResultStore in this package:
//
//   - FilesystemStore writes one plain-text document per result under a
//     per-scope directory, readable with any editor
//   - InMemoryStore keeps results in process memory for tests and prototypes
//
// A SQLite-backed store lives in the store/sqlite subpackage for deployments
// that prefer a single database file over a directory tree.
//
// All stores key records by (scope, id) where scope is the root owner scope
// and id the human-readable delegation identifier.
package store
