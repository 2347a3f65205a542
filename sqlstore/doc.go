// Package sqlstore provides a bun-based implementation of queue.Store
// across three SQL dialects: sqlite, postgres and mysql.
//
// # Overview
//
// The SQL backend provides:
//
//   - durable persistence of jobs, dead-letter entries and job logs
//   - atomic reservation using a dialect-specific primitive
//   - visibility-timeout (lease) semantics built on reserved_at + timeout
//
// # Concurrency Model
//
// sqlite and postgres implement Reserve as a single atomic
// UPDATE ... WHERE id IN (subquery) RETURNING statement. mysql lacks
// RETURNING on UPDATE, so its Reserve runs a SELECT ... FOR UPDATE
// SKIP LOCKED followed by an UPDATE inside one transaction.
//
// postgres additionally uses SKIP LOCKED in its reservation subquery so
// that concurrent reservations against the same eligible set do not
// block on each other; sqlite's single-writer model makes this
// unnecessary.
//
// # Schema
//
// InitDB creates the jobs, failed_jobs and job_logs tables plus the
// indexes the reservation, janitor and admin paths rely on. InitDB is
// idempotent and runs inside a transaction; it performs no destructive
// migrations.
//
// # Database Lifecycle
//
// This package does not manage connection pooling or migrations beyond
// InitDB. The caller configures *bun.DB (connection limits, WAL mode for
// sqlite, etc.) and calls InitDB before first use.
//
// # Limitations
//
// Lease semantics rely on status + timestamp columns, not lease tokens
// or optimistic-locking versions. Delivery remains at-least-once, never
// exactly-once, matching the engine's documented non-goals.
package sqlstore
