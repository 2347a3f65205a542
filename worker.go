package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaydb/queue/internal"
	"github.com/relaydb/queue/jobrow"
)

// WorkerConfig defines runtime behavior of a Worker.
//
// Concurrency specifies the number of concurrent handler invocations.
// Queue specifies the internal buffering capacity between reserving rows
// from the store and dispatching them into the pool.
// BatchSize caps the number of rows fetched in a single Store.Reserve.
// PullInterval controls how often the worker polls the store for new rows.
// Queues restricts reservation to the listed queue names; empty means any
// queue.
type WorkerConfig struct {
	Concurrency  int
	Queue        int
	BatchSize    int
	PullInterval time.Duration
	Queues       []string
}

// Worker drives continuous reserve -> execute -> settle cycles against a
// Store. It is the daemon counterpart to QueueManager's
// single-shot Process/ProcessBatch: a long-running process embeds a
// Worker and supervises it, while a CLI/cron invocation calls
// QueueManager.ProcessBatch once and exits.
//
// Worker does not extend an in-flight job's lease: the lease is fixed at
// ReservedAt + row.Timeout + grace. A handler that does not return before
// its own Timeout is reported as a retry-eligible timeout; a worker
// process that dies mid-execution is recovered by the Janitor, not by
// Worker itself.
//
// Worker has a strict lifecycle: Start may only be called once; Stop
// gracefully drains in-flight handlers up to a timeout.
type Worker struct {
	lcBase
	store     Store
	exec      *JobExecutor
	pullTask  internal.TimerTask
	pool      *internal.WorkerPool[*jobrow.Job]
	log       *slog.Logger
	batchSize int
	interval  time.Duration
	queues    []string
}

// NewWorker constructs a Worker. The worker is not started automatically;
// call Start to begin processing.
func NewWorker(store Store, exec *JobExecutor, config *WorkerConfig, log *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		exec:      exec,
		pool:      internal.NewWorkerPool[*jobrow.Job](config.Concurrency, config.Queue, log),
		log:       log,
		batchSize: config.BatchSize,
		interval:  config.PullInterval,
		queues:    config.Queues,
	}
}

func (w *Worker) pull(ctx context.Context) {
	rows, err := w.store.Reserve(ctx, w.queues, w.batchSize)
	if err != nil {
		w.log.Error("reserve failed", "err", err)
		return
	}
	for _, row := range rows {
		if !w.pool.Push(row) {
			w.log.Debug("job push interrupted via shutdown", "id", row.Id)
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, row *jobrow.Job) {
	w.exec.Execute(ctx, row)
}

// Start begins background reservation and processing of jobs.
//
// Start returns ErrDoubleStarted if the worker has already been started.
// The provided context controls cancellation: when it is canceled,
// pulling stops and in-flight handlers receive a canceled context (which
// their own per-job timeout will also eventually produce).
func (w *Worker) Start(ctx context.Context) error {
	if err := w.tryStart(); err != nil {
		return err
	}
	w.pool.Start(ctx, w.handle)
	w.pullTask.Start(ctx, w.pull, w.interval)
	return nil
}

func (w *Worker) doStop() internal.DoneChan {
	first := w.pullTask.Stop()
	second := w.pool.Stop()
	return internal.Combine(first, second)
}

// Stop initiates graceful shutdown: stops periodic pulling, cancels the
// internal pool, and waits for in-flight handlers to finish (up to
// timeout). Returns ErrStopTimeout if shutdown does not complete in time,
// or ErrDoubleStopped if the worker was not running.
func (w *Worker) Stop(timeout time.Duration) error {
	return w.tryStop(timeout, w.doStop)
}
