package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaydb/queue/clock"
	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
)

// AddOptions is QueueManager.Add's enumerated option set. Zero values
// fall back to the jobrow.Default* constants.
type AddOptions struct {
	MaxAttempts     uint32
	Timeout         time.Duration
	BackoffStrategy jobrow.BackoffStrategy
	RetryDelay      time.Duration
	Tags            []string
}

func (o AddOptions) withDefaults() AddOptions {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = jobrow.DefaultMaxAttempts
	}
	if o.Timeout == 0 {
		o.Timeout = jobrow.DefaultTimeout
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = jobrow.DefaultRetryDelay
	}
	return o
}

// QueueManager is the public enqueue/admin surface. It wraps
// a Store and a JobExecutor and enforces the synchronous-fallback mode
// when queueing is disabled.
type QueueManager struct {
	store   Store
	exec    *JobExecutor
	clock   clock.Clock
	enabled bool
}

// NewQueueManager constructs a QueueManager. enabled mirrors the
// queue.enabled configuration key: when false, Add dispatches through
// exec's synchronous path instead of the store.
func NewQueueManager(store Store, exec *JobExecutor, cl clock.Clock, enabled bool) *QueueManager {
	if cl == nil {
		cl = clock.System{}
	}
	return &QueueManager{store: store, exec: exec, clock: cl, enabled: enabled}
}

// Add enqueues taskName with payload. An empty queueName becomes
// "default"; priority is stored as given, so 0 means the highest
// priority, not the default of 5. PendingDispatch starts from queue
// "default" and priority 5 explicitly.
//
// When queueing is disabled, Add executes synchronously through the
// executor and its return value reflects that synchronous outcome; no
// jobs row is ever written.
func (m *QueueManager) Add(ctx context.Context, taskName string, payload map[string]any, queueName string, priority int, delay time.Duration, opts AddOptions) bool {
	if queueName == "" {
		queueName = jobrow.DefaultQueue
	}
	if !m.enabled {
		return m.exec.ExecuteSync(ctx, taskName, payload)
	}
	opts = opts.withDefaults()
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	_, err = m.store.Insert(ctx, InsertSpec{
		Queue:           queueName,
		Priority:        priority,
		Task:            taskName,
		Payload:         body,
		Delay:           delay,
		MaxAttempts:     opts.MaxAttempts,
		Timeout:         opts.Timeout,
		BackoffStrategy: opts.BackoffStrategy,
		RetryDelay:      opts.RetryDelay,
		Tags:            opts.Tags,
	})
	return err == nil
}

// Process runs one worker cycle: reserve a single eligible row (across
// queueFilter, or any queue if empty) and execute it. It is a convenience
// wrapper over ProcessBatch(1, ...).
func (m *QueueManager) Process(ctx context.Context, queueFilter []string) error {
	return m.ProcessBatch(ctx, 1, queueFilter, 0)
}

// ProcessBatch reserves up to batchSize rows in one Store.Reserve call and
// executes them sequentially, stopping early if the wall clock exceeds
// maxWallSeconds (0 disables the ceiling). Any row not yet executed when
// the ceiling trips is released back to Pending with AvailableAt=now.
func (m *QueueManager) ProcessBatch(ctx context.Context, batchSize int, queueFilter []string, maxWallSeconds int) error {
	rows, err := m.store.Reserve(ctx, queueFilter, batchSize)
	if err != nil {
		return err
	}
	start := m.clock.Now()
	var budget time.Duration
	if maxWallSeconds > 0 {
		budget = time.Duration(maxWallSeconds) * time.Second
	}
	for i, row := range rows {
		if budget > 0 && m.clock.Now().Sub(start) > budget {
			m.releaseUnexecuted(ctx, rows[i:])
			return nil
		}
		m.exec.Execute(ctx, row)
	}
	return nil
}

// releaseUnexecuted returns rows that ProcessBatch reserved but never got
// to run (because the wall-clock ceiling tripped) back to Pending,
// available immediately.
func (m *QueueManager) releaseUnexecuted(ctx context.Context, rows []*jobrow.Job) {
	now := m.clock.Now()
	for _, row := range rows {
		_ = m.store.FailRetry(ctx, row.Id, "released: batch wall-clock budget exceeded", now)
	}
}

// Stats returns the aggregate counts for queueName (or all queues if "").
func (m *QueueManager) Stats(ctx context.Context, queueName string) (Stats, error) {
	return m.store.Stats(ctx, queueName)
}

// GetFailedJobs lists dead-letter rows.
func (m *QueueManager) GetFailedJobs(ctx context.Context, queueName string, limit, offset int) ([]*deadletter.DeadLetter, error) {
	return m.store.GetFailed(ctx, queueName, limit, offset)
}

// RetryFailedJob re-enqueues a single dead-letter row by id, returning the
// new job's id.
func (m *QueueManager) RetryFailedJob(ctx context.Context, id string) (string, error) {
	return m.store.RetryFailed(ctx, id)
}

// RetryAllFailedJobs re-enqueues every dead-letter row matching queueName
// (or all queues if "").
func (m *QueueManager) RetryAllFailedJobs(ctx context.Context, queueName string) (int, error) {
	return m.store.RetryAllFailed(ctx, queueName)
}

// PurgeOldJobs removes job_logs rows older than ageDays.
func (m *QueueManager) PurgeOldJobs(ctx context.Context, ageDays int) (int64, error) {
	return m.store.PurgeOld(ctx, ageDays)
}

// PurgeFailedJobs removes dead-letter rows matching queueName (or all
// queues if "").
func (m *QueueManager) PurgeFailedJobs(ctx context.Context, queueName string) (int64, error) {
	return m.store.PurgeFailed(ctx, queueName)
}

// PendingDispatch is a fluent builder layered over QueueManager.Add. It is
// pure syntactic sugar: calling Dispatch has no behavioral difference from
// calling Add directly with the same arguments.
type PendingDispatch struct {
	manager  *QueueManager
	task     string
	queue    string
	priority int
	delay    time.Duration
	opts     AddOptions
}

// NewPendingDispatch starts a fluent dispatch for taskName using manager's
// defaults (queue "default", priority 5).
func NewPendingDispatch(manager *QueueManager, taskName string) *PendingDispatch {
	return &PendingDispatch{
		manager:  manager,
		task:     taskName,
		queue:    jobrow.DefaultQueue,
		priority: jobrow.DefaultPriority,
	}
}

// OnQueue sets the target queue.
func (d *PendingDispatch) OnQueue(queueName string) *PendingDispatch {
	d.queue = queueName
	return d
}

// Priority sets the priority (0-10, lower runs first).
func (d *PendingDispatch) Priority(p int) *PendingDispatch {
	d.priority = p
	return d
}

// Delay sets the minimum delay before the job becomes eligible.
func (d *PendingDispatch) Delay(delay time.Duration) *PendingDispatch {
	d.delay = delay
	return d
}

// MaxAttempts sets the retry budget.
func (d *PendingDispatch) MaxAttempts(n uint32) *PendingDispatch {
	d.opts.MaxAttempts = n
	return d
}

// Timeout sets the per-attempt execution ceiling.
func (d *PendingDispatch) Timeout(timeout time.Duration) *PendingDispatch {
	d.opts.Timeout = timeout
	return d
}

// Backoff sets the backoff strategy.
func (d *PendingDispatch) Backoff(strategy jobrow.BackoffStrategy) *PendingDispatch {
	d.opts.BackoffStrategy = strategy
	return d
}

// RetryAfter sets the base retry delay.
func (d *PendingDispatch) RetryAfter(delay time.Duration) *PendingDispatch {
	d.opts.RetryDelay = delay
	return d
}

// Tags attaches user-supplied metadata.
func (d *PendingDispatch) Tags(tags ...string) *PendingDispatch {
	d.opts.Tags = tags
	return d
}

// Dispatch submits payload via the underlying QueueManager.Add.
func (d *PendingDispatch) Dispatch(ctx context.Context, payload map[string]any) bool {
	return d.manager.Add(ctx, d.task, payload, d.queue, d.priority, d.delay, d.opts)
}
