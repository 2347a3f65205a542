package queue

import (
	"context"
	"errors"
	"time"

	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/joblog"
)

var (
	// ErrJobLost indicates that the referenced job no longer exists, or is
	// not in the state the caller expected (e.g. a Complete/FailRetry/
	// FailTerminal call racing a lease reclaim). Surfaces as a no-op or a
	// storage-level signal, never as a reason to mark the job failed.
	ErrJobLost = errors.New("queue: job lost")

	// ErrNotFound is returned by single-row admin lookups
	// (GetFailedOne, RetryFailed) when no matching row exists, together
	// with a nil/zero value. A missing row is reported through this error,
	// not as a nil result with a nil error; callers tell it apart from a
	// storage failure with errors.Is.
	ErrNotFound = errors.New("queue: not found")

	// ErrStorageFault wraps a transient storage error that has already
	// exhausted the store's bounded internal retries (see RetryingStore).
	// Workers treat this as "skip cycle, sleep briefly" — it must never
	// cause a job to be marked failed.
	ErrStorageFault = errors.New("queue: storage fault")
)

// InsertSpec describes a new job to persist via Store.Insert. Zero values
// for the optional fields are filled in by the store using the
// jobrow.Default* constants, mirroring QueueManager.Add's documented
// option defaults.
type InsertSpec struct {
	Queue           string
	Priority        int
	Task            string
	Payload         []byte
	Delay           time.Duration
	MaxAttempts     uint32
	Timeout         time.Duration
	BackoffStrategy jobrow.BackoffStrategy
	RetryDelay      time.Duration
	Tags            []string
}

// Stats is the aggregate returned by Store.Stats. PendingNow counts rows
// ready to be reserved right now; PendingLater counts rows whose
// AvailableAt is still in the future.
type Stats struct {
	PendingNow   int64
	PendingLater int64
	Reserved     int64
	DeadLetter   int64
}

// Store is the single source of truth and single point of synchronization
// for job state. Every mutation is transactional.
//
// Implementations must guarantee: at most one caller ever observes a given
// (id, attempts) pair returned from Reserve.
type Store interface {
	// Insert persists a new row with Status=Pending, AvailableAt=now+delay,
	// Attempts=0, applying InsertSpec defaults. It does not validate that
	// Task resolves to a handler. Returns the assigned id.
	Insert(ctx context.Context, spec InsertSpec) (string, error)

	// Reserve atomically selects up to batchSize rows where queue is in
	// queues (or any queue if queues is empty), Status=Pending, and
	// AvailableAt <= now, ordered by (priority ASC, available_at ASC, id
	// ASC). Selected rows transition to Reserved with ReservedAt=now and
	// Attempts+1, in the same transaction as the selection.
	Reserve(ctx context.Context, queues []string, batchSize int) ([]*jobrow.Job, error)

	// Complete requires the row to be Reserved; it deletes the row. A
	// missing row is treated as already-complete (idempotent, no error).
	Complete(ctx context.Context, id string) error

	// FailRetry requires the row to be Reserved. It sets Status=Pending,
	// ReservedAt=nil, AvailableAt=nextAvailableAt, LastError=truncated
	// error, UpdatedAt=now. Attempts is not touched (it was incremented at
	// reservation time).
	FailRetry(ctx context.Context, id string, errMsg string, nextAvailableAt time.Time) error

	// FailTerminal requires the row to be Reserved. In one transaction it
	// copies the row into the dead-letter table (TotalAttempts=Attempts,
	// FailedAt=now, error appended to RetryHistory) and deletes the jobs
	// row. Like Complete, an already-absent row is a no-op.
	FailTerminal(ctx context.Context, id string, errMsg string, stackTrace string) error

	// ReclaimExpiredLeases finds Reserved rows whose
	// ReservedAt+Timeout+grace has passed. Each is either returned to
	// Pending via the retry path (if Attempts < MaxAttempts) or moved to
	// dead-letter with error "lease expired". Returns the number of rows
	// reclaimed.
	ReclaimExpiredLeases(ctx context.Context, grace time.Duration) (int, error)

	// PurgeOld deletes job_logs rows older than ageDays. Completed and
	// terminally failed jobs rows are never retained in the jobs table, so
	// this method's only durable effect today is on job_logs; it remains
	// safe to call even against a future schema that does retain them.
	// Returns the number of rows deleted.
	PurgeOld(ctx context.Context, ageDays int) (int64, error)

	// GetFailed returns up to limit dead-letter rows (optionally filtered
	// by queue), most recently failed first.
	GetFailed(ctx context.Context, queue string, limit, offset int) ([]*deadletter.DeadLetter, error)

	// GetFailedOne returns a single dead-letter row by id, or ErrNotFound.
	GetFailedOne(ctx context.Context, id string) (*deadletter.DeadLetter, error)

	// RetryFailed inserts a new Pending jobs row (Attempts=0) cloned from
	// the dead-letter record's queue/task/payload/priority/tags, then
	// deletes the dead-letter row, atomically. Returns the new job id.
	RetryFailed(ctx context.Context, id string) (string, error)

	// RetryAllFailed applies RetryFailed to every dead-letter row matching
	// queue (or all queues if empty). Returns the number retried.
	RetryAllFailed(ctx context.Context, queue string) (int, error)

	// PurgeFailed deletes dead-letter rows matching queue (or all queues
	// if empty). Returns the number deleted.
	PurgeFailed(ctx context.Context, queue string) (int64, error)

	// Stats returns the aggregate counts for queue (or across all queues
	// if empty). Stats does not lock and must remain cheap to call on a
	// polling cadence.
	Stats(ctx context.Context, queue string) (Stats, error)

	// WriteLog appends one diagnostic row to the job_logs trail. It is
	// off the hot path: JobExecutor calls it after settling a
	// row, never before, and a failure to write a log entry must never
	// affect the outcome of the job it describes.
	WriteLog(ctx context.Context, entry joblog.LogEntry) error
}
