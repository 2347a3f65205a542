// Package queue implements a storage-agnostic, database-backed job queue
// with at-least-once delivery semantics and per-job retry/backoff.
//
// # Overview
//
// queue models a durable, multi-queue, priority-aware scheduler. Producers
// call QueueManager.Add to persist a unit of work; Worker instances
// reserve due rows under a lease, run them through a JobExecutor, and
// settle the outcome (complete, retry with backoff, or dead-letter) via
// the Store contract. A Janitor reclaims abandoned leases and purges old
// rows.
//
// The package does not mandate a storage backend: Store is an interface,
// implemented for SQL databases by the sibling sqlstore package.
//
// # Delivery Semantics
//
// queue provides at-least-once processing. A job may be delivered more
// than once if a worker crashes before settling it, if its visibility
// timeout (lease) expires, or if the janitor reclaims it concurrently with
// a slow handler. Handlers must therefore be idempotent.
//
// # Visibility Timeout (Lease Model)
//
// When a job is reserved, it transitions from Pending to Reserved and
// receives a lease equal to its own Timeout field. While the lease is
// valid, the job is invisible to other workers. If the lease expires
// before settlement, the Janitor reclaims it back to Pending (preserving
// Attempts) or moves it to the dead-letter table if its retry budget is
// exhausted.
//
// # State Machine
//
//	Pending  -> Reserved
//	Reserved -> (row deleted)              via Complete
//	Reserved -> Pending                    via FailRetry or lease reclaim
//	Reserved -> dead-letter (row deleted)  via FailTerminal
//
// Reaching MaxAttempts on failure moves the row to dead-letter rather than
// back to Pending. A "retry" of a dead-letter entry creates a brand-new
// jobs row; the original row and its id are never revived.
//
// # Retry Policy
//
// Retry behavior is controlled per-job by RetryDelay and BackoffStrategy,
// resolved through the retry package. Attempts increments on reservation,
// not on settlement, so a crashed worker still "burns" an attempt once its
// lease is reclaimed.
//
// # Worker
//
// Worker coordinates reserving, dispatching, retrying and settling jobs.
// It periodically polls the Store for eligible rows and dispatches them to
// a bounded internal worker pool, which applies retry/backoff logic on
// failure. Worker never extends a job's lease; a handler that does not
// finish before its own Timeout is reported as a timeout failure, and any
// worker process that dies mid-execution is recovered by the Janitor, not
// by Worker itself. Worker does not guarantee exactly-once delivery and
// does not itself run as a daemon — callers supervise it in their own
// process loop.
//
// # Concurrency Model
//
// Worker uses a bounded internal queue and a fixed-size pool; reserving
// and processing are decoupled to smooth load. Shutdown is graceful:
// in-flight handlers are allowed to finish, subject to a timeout.
//
// # Storage Expectations
//
// Store implementations must ensure atomic state transitions, durable
// persistence, and correct lease handling. Behavior under concurrent
// writers depends on the chosen backend's isolation guarantees.
package queue
