package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/joblog"
)

// RetryingStore decorates a Store with bounded internal retries for
// transient storage errors (dropped connections, deadlocks, serialization
// failures). Once the retry budget is exhausted the last error surfaces
// wrapped in ErrStorageFault, which workers treat as "skip cycle, sleep
// briefly" — a storage fault never marks a job failed.
//
// Errors that describe queue state rather than storage health (ErrJobLost,
// ErrNotFound) and context cancellation pass through without retrying.
type RetryingStore struct {
	inner    Store
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// NewRetryingStore wraps inner. attempts is the total number of tries per
// operation (minimum 1); backoff is the sleep before the first re-try and
// doubles per attempt, capped at one second.
func NewRetryingStore(inner Store, attempts int, backoff time.Duration, log *slog.Logger) *RetryingStore {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryingStore{inner: inner, attempts: attempts, backoff: backoff, log: log}
}

const maxRetryBackoff = time.Second

func passThrough(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrJobLost) ||
		errors.Is(err, ErrNotFound)
}

func withRetries[T any](ctx context.Context, s *RetryingStore, op string, fn func() (T, error)) (T, error) {
	var out T
	var err error
	delay := s.backoff
	for attempt := 1; ; attempt++ {
		out, err = fn()
		if err == nil || passThrough(err) {
			return out, err
		}
		if attempt >= s.attempts {
			return out, errors.Join(ErrStorageFault, err)
		}
		s.log.Warn("transient storage error, retrying", "op", op, "attempt", attempt, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
	}
}

func (s *RetryingStore) Insert(ctx context.Context, spec InsertSpec) (string, error) {
	return withRetries(ctx, s, "insert", func() (string, error) {
		return s.inner.Insert(ctx, spec)
	})
}

func (s *RetryingStore) Reserve(ctx context.Context, queues []string, batchSize int) ([]*jobrow.Job, error) {
	return withRetries(ctx, s, "reserve", func() ([]*jobrow.Job, error) {
		return s.inner.Reserve(ctx, queues, batchSize)
	})
}

func (s *RetryingStore) Complete(ctx context.Context, id string) error {
	_, err := withRetries(ctx, s, "complete", func() (struct{}, error) {
		return struct{}{}, s.inner.Complete(ctx, id)
	})
	return err
}

func (s *RetryingStore) FailRetry(ctx context.Context, id string, errMsg string, nextAvailableAt time.Time) error {
	_, err := withRetries(ctx, s, "fail_retry", func() (struct{}, error) {
		return struct{}{}, s.inner.FailRetry(ctx, id, errMsg, nextAvailableAt)
	})
	return err
}

func (s *RetryingStore) FailTerminal(ctx context.Context, id string, errMsg string, stackTrace string) error {
	_, err := withRetries(ctx, s, "fail_terminal", func() (struct{}, error) {
		return struct{}{}, s.inner.FailTerminal(ctx, id, errMsg, stackTrace)
	})
	return err
}

func (s *RetryingStore) ReclaimExpiredLeases(ctx context.Context, grace time.Duration) (int, error) {
	return withRetries(ctx, s, "reclaim_expired_leases", func() (int, error) {
		return s.inner.ReclaimExpiredLeases(ctx, grace)
	})
}

func (s *RetryingStore) PurgeOld(ctx context.Context, ageDays int) (int64, error) {
	return withRetries(ctx, s, "purge_old", func() (int64, error) {
		return s.inner.PurgeOld(ctx, ageDays)
	})
}

func (s *RetryingStore) GetFailed(ctx context.Context, queue string, limit, offset int) ([]*deadletter.DeadLetter, error) {
	return withRetries(ctx, s, "get_failed", func() ([]*deadletter.DeadLetter, error) {
		return s.inner.GetFailed(ctx, queue, limit, offset)
	})
}

func (s *RetryingStore) GetFailedOne(ctx context.Context, id string) (*deadletter.DeadLetter, error) {
	return withRetries(ctx, s, "get_failed_one", func() (*deadletter.DeadLetter, error) {
		return s.inner.GetFailedOne(ctx, id)
	})
}

func (s *RetryingStore) RetryFailed(ctx context.Context, id string) (string, error) {
	return withRetries(ctx, s, "retry_failed", func() (string, error) {
		return s.inner.RetryFailed(ctx, id)
	})
}

func (s *RetryingStore) RetryAllFailed(ctx context.Context, queue string) (int, error) {
	return withRetries(ctx, s, "retry_all_failed", func() (int, error) {
		return s.inner.RetryAllFailed(ctx, queue)
	})
}

func (s *RetryingStore) PurgeFailed(ctx context.Context, queue string) (int64, error) {
	return withRetries(ctx, s, "purge_failed", func() (int64, error) {
		return s.inner.PurgeFailed(ctx, queue)
	})
}

func (s *RetryingStore) Stats(ctx context.Context, queue string) (Stats, error) {
	return withRetries(ctx, s, "stats", func() (Stats, error) {
		return s.inner.Stats(ctx, queue)
	})
}

func (s *RetryingStore) WriteLog(ctx context.Context, entry joblog.LogEntry) error {
	// The diagnostic trail is best-effort; one try is enough.
	return s.inner.WriteLog(ctx, entry)
}
