// Package store records provguard runs in SQLite so that consecutive runs
// over the same build tree can be compared.
//
// The store is append-only:
//   - runs: one row per suite run, holding the canonical report snapshot
//     and its digest
//   - case_results: one row per evaluated case, in suite order
//
// Ordering uses the seq column (insertion order), never recorded_at, so
// "latest" does not depend on wall-clock skew between machines.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: Enforce referential integrity
package store
