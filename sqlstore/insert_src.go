package sqlstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	queue "github.com/relaydb/queue"
	"github.com/relaydb/queue/jobrow"
)

// SQLStore implements queue.Store against one of the three supported SQL
// dialects via github.com/uptrace/bun.
type SQLStore struct {
	db      *bun.DB
	dialect Dialect
}

// NewSQLStore wraps an already-initialized *bun.DB (InitDB must have been
// called) as a queue.Store. dialect selects the reservation primitive
// used by Reserve.
func NewSQLStore(db *bun.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func fromSpec(spec queue.InsertSpec) *jobModel {
	now := time.Now()
	queueName := spec.Queue
	if queueName == "" {
		queueName = jobrow.DefaultQueue
	}
	maxAttempts := spec.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = jobrow.DefaultMaxAttempts
	}
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = jobrow.DefaultTimeout
	}
	retryDelay := spec.RetryDelay
	if retryDelay == 0 {
		retryDelay = jobrow.DefaultRetryDelay
	}
	priority := spec.Priority
	return &jobModel{
		Id:              jobrow.NewId(),
		Queue:           queueName,
		Priority:        priority,
		Task:            spec.Task,
		Payload:         spec.Payload,
		Status:          jobrow.Pending,
		Attempts:        0,
		MaxAttempts:     maxAttempts,
		RetryDelaySecs:  int64(retryDelay / time.Second),
		BackoffStrategy: spec.BackoffStrategy,
		CreatedAt:       now,
		UpdatedAt:       now,
		AvailableAt:     now.Add(spec.Delay),
		TimeoutSecs:     int64(timeout / time.Second),
		Tags:            spec.Tags,
	}
}

// Insert persists a new pending row, applying InsertSpec defaults. It
// does not validate that the task name resolves to a handler.
func (s *SQLStore) Insert(ctx context.Context, spec queue.InsertSpec) (string, error) {
	model := fromSpec(spec)
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", err
	}
	return model.Id, nil
}
