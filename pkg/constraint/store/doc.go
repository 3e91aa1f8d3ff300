// Package store persists token-bucket state for the constraint enforcer.
//
// All backends expose optimistic concurrency through versioned
// compare-and-swap: every persisted state carries a monotonically
// increasing version, and a write only applies when the caller's expected
// version still matches. Concurrent writers therefore never overwrite
// each other silently; the loser observes a conflict and retries against
// fresh state.
//
// Two backends are provided: an in-memory map for single-instance
// deployments and tests, and a SQLite-backed store for durability across
// restarts. Both are safe for concurrent use.
package store
