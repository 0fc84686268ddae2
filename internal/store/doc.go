// Package store provides the SQLite run index.
//
// The index is a cache over the runs directory: every row comes from a
// summary.json and Reindex rebuilds the whole database from disk. Commands
// that read it must keep working when it is missing or disabled.
//
// Tables:
//   - runs: one row per parent run, with its flow, margin, policy source and
//     overall status
//   - subruns: one row per sub-run, ordered by seq within a run
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Listing order is created_at descending, then run id, so results are stable
// for runs created in the same instant.
package store
