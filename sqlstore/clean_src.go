package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	queue "github.com/relaydb/queue"
	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/retry"
)

// Complete requires the row to be Reserved and deletes it. A missing row
// is treated as already-complete, never an error.
func (s *SQLStore) Complete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", id).
		Where("status = ?", jobrow.Reserved).
		Exec(ctx)
	return err
}

// FailRetry requires the row to be Reserved and returns it to Pending
// with a new available_at. attempts is left untouched; it was already
// incremented at reservation time.
func (s *SQLStore) FailRetry(ctx context.Context, id string, errMsg string, nextAvailableAt time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", jobrow.Pending).
		Set("reserved_at = NULL").
		Set("available_at = ?", nextAvailableAt).
		Set("last_error = ?", jobrow.TruncateError(errMsg)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", jobrow.Reserved).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return queue.ErrJobLost
	}
	return nil
}

// FailTerminal requires the row to be Reserved. In one transaction it
// copies the row into failed_jobs and deletes the jobs row. An
// already-absent row is a no-op, like Complete.
func (s *SQLStore) FailTerminal(ctx context.Context, id string, errMsg string, stackTrace string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var model jobModel
		q := tx.NewSelect().
			Model(&model).
			Where("id = ?", id).
			Where("status = ?", jobrow.Reserved)
		if err := s.lockRow(q).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		dl := fromRow(&model)
		dl.Exception = errMsg
		dl.StackTrace = stackTrace
		dl.FailedAt = time.Now()
		dl.RetryHistory = append(dl.RetryHistory, deadletter.RetryEvent{
			Attempt: model.Attempts,
			Error:   errMsg,
			At:      dl.FailedAt,
		})
		if _, err := tx.NewInsert().Model(dl).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*jobModel)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ReclaimExpiredLeases finds Reserved rows whose lease has expired and
// either returns them to Pending via the retry path or moves them to
// dead-letter if attempts are exhausted. Each row settles through its own
// transactional FailRetry/FailTerminal to keep lock spans short; a row
// the worker settles concurrently is skipped, not an error.
//
// A Reserved row with a NULL reserved_at cannot exist under the state
// machine; such a row is treated as expired immediately so the reclaim
// path repairs it.
func (s *SQLStore) ReclaimExpiredLeases(ctx context.Context, grace time.Duration) (int, error) {
	var expired []*jobModel
	err := s.db.NewSelect().
		Model(&expired).
		Where("status = ?", jobrow.Reserved).
		Scan(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	n := 0
	for _, row := range expired {
		if row.ReservedAt != nil {
			deadline := row.ReservedAt.Add(time.Duration(row.TimeoutSecs) * time.Second).Add(grace)
			if now.Before(deadline) {
				continue
			}
		}
		if row.Attempts < row.MaxAttempts {
			delay := retry.Schedule(row.BackoffStrategy, time.Duration(row.RetryDelaySecs)*time.Second, row.Attempts)
			if err := s.FailRetry(ctx, row.Id, "lease expired", now.Add(delay)); err != nil {
				if errors.Is(err, queue.ErrJobLost) {
					continue
				}
				return n, err
			}
		} else {
			if err := s.FailTerminal(ctx, row.Id, "lease expired", ""); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, nil
}

// PurgeOld removes job_logs rows older than ageDays. Completed and
// terminally failed jobs rows are never retained in the jobs table, so
// job_logs is the only durable target today.
func (s *SQLStore) PurgeOld(ctx context.Context, ageDays int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(ageDays) * 24 * time.Hour)
	res, err := s.db.NewDelete().
		Model((*logModel)(nil)).
		Where("created_at <= ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
