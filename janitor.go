package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaydb/queue/internal"
	"github.com/relaydb/queue/jobrow"
)

// JanitorConfig defines the scheduling parameters for a Janitor.
//
// Interval controls how often the janitor runs its periodic duties:
// reclaiming expired leases and purging old job_logs rows.
//
// Grace is added on top of a reserved row's own Timeout before its lease
// is considered expired, absorbing clock skew between hosts.
//
// LogRetentionDays gates the purgeOld duty; a zero value disables it.
// Dead-letter purging is operator-invoked only, exposed through
// QueueManager.PurgeFailedJobs / the queuectl "failed purge" command,
// not run automatically by the janitor.
type JanitorConfig struct {
	Interval         time.Duration
	Grace            time.Duration
	LogRetentionDays int
}

// Janitor periodically reclaims abandoned leases and enforces retention.
// It is the sole mechanism that recovers a job whose
// worker died, or hung, mid-execution: Worker itself never extends or
// otherwise touches another job's lease.
//
// Janitor does not participate in normal dispatch and has no effect on
// Pending rows that have not yet been reserved.
//
// Janitor has the same strict start-once/stop-once lifecycle as Worker.
type Janitor struct {
	lcBase
	store    Store
	task     internal.TimerTask
	log      *slog.Logger
	interval time.Duration
	grace    time.Duration
	logDays  int
}

// NewJanitor creates a Janitor bound to store using the given config. The
// janitor is not started automatically; call Start to begin the periodic
// sweep.
func NewJanitor(store Store, config *JanitorConfig, log *slog.Logger) *Janitor {
	grace := config.Grace
	if grace == 0 {
		grace = jobrow.DefaultLeaseGrace
	}
	return &Janitor{
		store:    store,
		log:      log,
		interval: config.Interval,
		grace:    grace,
		logDays:  config.LogRetentionDays,
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	reclaimed, err := j.store.ReclaimExpiredLeases(ctx, j.grace)
	if err != nil {
		j.log.Error("reclaim expired leases failed", "err", err)
	} else if reclaimed > 0 {
		j.log.Info("reclaimed expired leases", "count", reclaimed)
	}

	if j.logDays > 0 {
		purged, err := j.store.PurgeOld(ctx, j.logDays)
		if err != nil {
			j.log.Error("purge old job logs failed", "err", err)
		} else if purged > 0 {
			j.log.Info("purged old job logs", "count", purged)
		}
	}
}

// Start begins the periodic sweep.
//
// Start returns ErrDoubleStarted if the janitor has already been
// started.
func (j *Janitor) Start(ctx context.Context) error {
	if err := j.tryStart(); err != nil {
		return err
	}
	j.task.Start(ctx, j.sweep, j.interval)
	return nil
}

// Stop terminates the background sweep, waiting up to timeout for the
// in-flight sweep to finish.
func (j *Janitor) Stop(timeout time.Duration) error {
	return j.tryStop(timeout, j.task.Stop)
}
