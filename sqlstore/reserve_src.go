package sqlstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/relaydb/queue/jobrow"
)

func eligibleQuery(db bun.IDB, queues []string, now time.Time, batchSize int) *bun.SelectQuery {
	q := db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("status = ?", jobrow.Pending).
		Where("available_at <= ?", now).
		Order("priority ASC", "available_at ASC", "id ASC").
		Limit(batchSize)
	if len(queues) > 0 {
		q = q.Where("queue IN (?)", bun.In(queues))
	}
	return q
}

// Reserve atomically selects up to batchSize eligible rows and
// transitions them to Reserved. sqlite and
// postgres use a single UPDATE ... WHERE id IN (subquery) RETURNING
// statement; mysql, lacking RETURNING, uses a SELECT ... FOR UPDATE
// SKIP LOCKED followed by an UPDATE inside one transaction.
func (s *SQLStore) Reserve(ctx context.Context, queues []string, batchSize int) ([]*jobrow.Job, error) {
	if batchSize <= 0 {
		return nil, nil
	}
	if s.dialect == DialectMySQL {
		return s.reserveMySQL(ctx, queues, batchSize)
	}
	return s.reserveReturning(ctx, queues, batchSize)
}

func (s *SQLStore) reserveReturning(ctx context.Context, queues []string, batchSize int) ([]*jobrow.Job, error) {
	now := time.Now()
	sub := eligibleQuery(s.db, queues, now, batchSize)
	if s.dialect == DialectPostgres {
		sub = sub.For("UPDATE SKIP LOCKED")
	}
	var models []*jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", jobrow.Reserved).
		Set("attempts = attempts + 1").
		Set("reserved_at = ?", now).
		Set("updated_at = ?", now).
		Where("id IN (?)", sub).
		Returning("*").
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return toRows(models), nil
}

func (s *SQLStore) reserveMySQL(ctx context.Context, queues []string, batchSize int) ([]*jobrow.Job, error) {
	var out []*jobrow.Job
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		var ids []string
		if err := eligibleQuery(tx, queues, now, batchSize).For("UPDATE SKIP LOCKED").Scan(ctx, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.NewUpdate().
			Model((*jobModel)(nil)).
			Set("status = ?", jobrow.Reserved).
			Set("attempts = attempts + 1").
			Set("reserved_at = ?", now).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		var models []*jobModel
		if err := tx.NewSelect().
			Model(&models).
			Where("id IN (?)", bun.In(ids)).
			Order("priority ASC", "available_at ASC", "id ASC").
			Scan(ctx); err != nil {
			return err
		}
		out = toRows(models)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toRows(models []*jobModel) []*jobrow.Job {
	rows := make([]*jobrow.Job, 0, len(models))
	for _, m := range models {
		rows = append(rows, m.toRow())
	}
	return rows
}
