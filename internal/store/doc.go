// Package store provides SQLite-backed storage for measurement sessions.
//
// A session is stored as three tables:
//   - sessions: identity, label, configuration and timing
//   - runs: one row per run, with the failure reason for aborted runs
//   - attempts: every correlated attempt, warm-up included
//
// Statistics are never persisted. LoadReport rebuilds the report from the
// attempt rows and recomputes every aggregate, so a stored session always
// reflects the current reduction rules.
//
// # Ordering
//
// Sessions are ordered by seq, a logical counter assigned on insert, then by
// id. Runs and attempts are ordered by their indices.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
