package queue_test

import (
	"context"
	"sort"
	"sync"
	"time"

	queue "github.com/relaydb/queue"
	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/joblog"
)

// fakeStore is an in-memory queue.Store used across this package's tests.
// It implements the same ordering/exclusivity contract the sqlstore
// package provides against a real database, just without any SQL.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]*jobrow.Job
	dead    map[string]*deadletter.DeadLetter
	logs    []joblog.LogEntry
	nowFunc func() time.Time
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		rows:    make(map[string]*jobrow.Job),
		dead:    make(map[string]*deadletter.DeadLetter),
		nowFunc: now,
	}
}

func (s *fakeStore) Insert(_ context.Context, spec queue.InsertSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	id := jobrow.NewId()
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
	queueName := spec.Queue
	if queueName == "" {
		queueName = jobrow.DefaultQueue
	}
	s.rows[id] = &jobrow.Job{
		Id:              id,
		Queue:           queueName,
		Priority:        spec.Priority,
		Task:            spec.Task,
		Payload:         spec.Payload,
		Status:          jobrow.Pending,
		MaxAttempts:     maxAttempts,
		RetryDelay:      retryDelay,
		BackoffStrategy: spec.BackoffStrategy,
		CreatedAt:       now,
		UpdatedAt:       now,
		AvailableAt:     now.Add(spec.Delay),
		Timeout:         timeout,
		Tags:            spec.Tags,
	}
	return id, nil
}

func (s *fakeStore) Reserve(_ context.Context, queues []string, batchSize int) ([]*jobrow.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	allowed := func(q string) bool {
		if len(queues) == 0 {
			return true
		}
		for _, want := range queues {
			if want == q {
				return true
			}
		}
		return false
	}
	var eligible []*jobrow.Job
	for _, row := range s.rows {
		if row.Status == jobrow.Pending && allowed(row.Queue) && !row.AvailableAt.After(now) {
			eligible = append(eligible, row)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		if !eligible[i].AvailableAt.Equal(eligible[j].AvailableAt) {
			return eligible[i].AvailableAt.Before(eligible[j].AvailableAt)
		}
		return eligible[i].Id < eligible[j].Id
	})
	if len(eligible) > batchSize {
		eligible = eligible[:batchSize]
	}
	out := make([]*jobrow.Job, 0, len(eligible))
	for _, row := range eligible {
		row.Status = jobrow.Reserved
		row.Attempts++
		reservedAt := now
		row.ReservedAt = &reservedAt
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *fakeStore) FailRetry(_ context.Context, id string, errMsg string, nextAvailableAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return queue.ErrJobLost
	}
	row.Status = jobrow.Pending
	row.ReservedAt = nil
	row.AvailableAt = nextAvailableAt
	row.LastError = jobrow.TruncateError(errMsg)
	row.UpdatedAt = s.nowFunc()
	return nil
}

func (s *fakeStore) FailTerminal(_ context.Context, id string, errMsg string, stackTrace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	delete(s.rows, id)
	s.dead[id] = &deadletter.DeadLetter{
		Id:            id,
		Queue:         row.Queue,
		Task:          row.Task,
		Payload:       row.Payload,
		Exception:     errMsg,
		StackTrace:    stackTrace,
		FailedAt:      s.nowFunc(),
		TotalAttempts: row.Attempts,
		OriginalJobId: id,
		Priority:      row.Priority,
		Tags:          row.Tags,
	}
	return nil
}

func (s *fakeStore) ReclaimExpiredLeases(_ context.Context, grace time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	n := 0
	for id, row := range s.rows {
		if row.Status != jobrow.Reserved || row.ReservedAt == nil {
			continue
		}
		if now.Before(row.ReservedAt.Add(row.Timeout).Add(grace)) {
			continue
		}
		n++
		if row.Attempts < row.MaxAttempts {
			row.Status = jobrow.Pending
			row.ReservedAt = nil
			row.AvailableAt = now
			row.LastError = "lease expired"
			continue
		}
		delete(s.rows, id)
		s.dead[id] = &deadletter.DeadLetter{
			Id:            id,
			Queue:         row.Queue,
			Task:          row.Task,
			Payload:       row.Payload,
			Exception:     "lease expired",
			FailedAt:      now,
			TotalAttempts: row.Attempts,
			OriginalJobId: id,
			Priority:      row.Priority,
			Tags:          row.Tags,
		}
	}
	return n, nil
}

func (s *fakeStore) PurgeOld(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

func (s *fakeStore) GetFailed(_ context.Context, queueName string, limit, offset int) ([]*deadletter.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*deadletter.DeadLetter
	for _, dl := range s.dead {
		if queueName != "" && dl.Queue != queueName {
			continue
		}
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetFailedOne(_ context.Context, id string) (*deadletter.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.dead[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	return dl, nil
}

func (s *fakeStore) RetryFailed(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	dl, ok := s.dead[id]
	if !ok {
		s.mu.Unlock()
		return "", queue.ErrNotFound
	}
	delete(s.dead, id)
	s.mu.Unlock()
	return s.Insert(context.Background(), queue.InsertSpec{
		Queue:    dl.Queue,
		Priority: dl.Priority,
		Task:     dl.Task,
		Payload:  dl.Payload,
		Tags:     dl.Tags,
	})
}

func (s *fakeStore) RetryAllFailed(ctx context.Context, queueName string) (int, error) {
	s.mu.Lock()
	var ids []string
	for id, dl := range s.dead {
		if queueName == "" || dl.Queue == queueName {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		if _, err := s.RetryFailed(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *fakeStore) PurgeFailed(_ context.Context, queueName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, dl := range s.dead {
		if queueName == "" || dl.Queue == queueName {
			delete(s.dead, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Stats(_ context.Context, queueName string) (queue.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	var st queue.Stats
	for _, row := range s.rows {
		if queueName != "" && row.Queue != queueName {
			continue
		}
		switch row.Status {
		case jobrow.Reserved:
			st.Reserved++
		case jobrow.Pending:
			if row.AvailableAt.After(now) {
				st.PendingLater++
			} else {
				st.PendingNow++
			}
		}
	}
	for _, dl := range s.dead {
		if queueName != "" && dl.Queue != queueName {
			continue
		}
		st.DeadLetter++
	}
	return st, nil
}

func (s *fakeStore) WriteLog(_ context.Context, entry joblog.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// loggedEntries returns a snapshot of every LogEntry written so far, for
// tests that assert on the job_logs trail.
func (s *fakeStore) loggedEntries() []joblog.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]joblog.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}
