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
)

// GetFailed returns up to limit dead-letter rows (optionally filtered by
// queue), most recently failed first.
func (s *SQLStore) GetFailed(ctx context.Context, queueName string, limit, offset int) ([]*deadletter.DeadLetter, error) {
	var models []*deadLetterModel
	q := s.db.NewSelect().Model(&models).Order("failed_at DESC")
	if queueName != "" {
		q = q.Where("queue = ?", queueName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*deadletter.DeadLetter, 0, len(models))
	for _, m := range models {
		out = append(out, m.toRow())
	}
	return out, nil
}

// GetFailedOne returns a single dead-letter row by id, or
// queue.ErrNotFound.
func (s *SQLStore) GetFailedOne(ctx context.Context, id string) (*deadletter.DeadLetter, error) {
	var model deadLetterModel
	err := s.db.NewSelect().Model(&model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNotFound
		}
		return nil, err
	}
	return model.toRow(), nil
}

// RetryFailed clones a dead-letter record into a brand-new pending jobs
// row, then deletes the dead-letter row, atomically. Returns the new
// job's id; the original id is never revived.
func (s *SQLStore) RetryFailed(ctx context.Context, id string) (string, error) {
	var newId string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var dl deadLetterModel
		q := tx.NewSelect().Model(&dl).Where("id = ?", id)
		if err := s.lockRow(q).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return queue.ErrNotFound
			}
			return err
		}
		fresh := fromSpec(queue.InsertSpec{
			Queue:    dl.Queue,
			Priority: dl.Priority,
			Task:     dl.Task,
			Payload:  dl.Payload,
			Tags:     dl.Tags,
		})
		if _, err := tx.NewInsert().Model(fresh).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*deadLetterModel)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return err
		}
		newId = fresh.Id
		return nil
	})
	if err != nil {
		return "", err
	}
	return newId, nil
}

// RetryAllFailed applies RetryFailed to every dead-letter row matching
// queue (or all queues if empty). Returns the number retried.
func (s *SQLStore) RetryAllFailed(ctx context.Context, queueName string) (int, error) {
	var ids []string
	q := s.db.NewSelect().Model((*deadLetterModel)(nil)).Column("id")
	if queueName != "" {
		q = q.Where("queue = ?", queueName)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, err := s.RetryFailed(ctx, id); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// PurgeFailed deletes dead-letter rows matching queue (or all queues if
// empty). Returns the number deleted.
func (s *SQLStore) PurgeFailed(ctx context.Context, queueName string) (int64, error) {
	q := s.db.NewDelete().Model((*deadLetterModel)(nil))
	if queueName != "" {
		q = q.Where("queue = ?", queueName)
	} else {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

// Stats returns the aggregate counts for queue (or across all queues if
// empty). Stats does not lock and is cheap enough to poll.
func (s *SQLStore) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	now := time.Now()

	countJobs := func(extra func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
		q := s.db.NewSelect().Model((*jobModel)(nil))
		if queueName != "" {
			q = q.Where("queue = ?", queueName)
		}
		q = extra(q)
		return q.Count(ctx)
	}

	pendingNow, err := countJobs(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", jobrow.Pending).Where("available_at <= ?", now)
	})
	if err != nil {
		return queue.Stats{}, err
	}
	pendingLater, err := countJobs(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", jobrow.Pending).Where("available_at > ?", now)
	})
	if err != nil {
		return queue.Stats{}, err
	}
	reserved, err := countJobs(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", jobrow.Reserved)
	})
	if err != nil {
		return queue.Stats{}, err
	}

	deadQuery := s.db.NewSelect().Model((*deadLetterModel)(nil))
	if queueName != "" {
		deadQuery = deadQuery.Where("queue = ?", queueName)
	}
	deadLetter, err := deadQuery.Count(ctx)
	if err != nil {
		return queue.Stats{}, err
	}

	return queue.Stats{
		PendingNow:   int64(pendingNow),
		PendingLater: int64(pendingLater),
		Reserved:     int64(reserved),
		DeadLetter:   int64(deadLetter),
	}, nil
}
