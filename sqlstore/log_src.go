package sqlstore

import (
	"context"

	"github.com/relaydb/queue/joblog"
)

// WriteLog appends one row to job_logs. It never participates
// in the transaction that settles the job it describes; a log write
// failure is the caller's concern to surface, not a reason to retry the
// settlement itself.
func (s *SQLStore) WriteLog(ctx context.Context, entry joblog.LogEntry) error {
	m := &logModel{
		JobId:            entry.JobId,
		Queue:            entry.Queue,
		Level:            string(entry.Level),
		Message:          entry.Message,
		Context:          entry.Context,
		ElapsedMillis:    entry.ElapsedMillis,
		MemoryDeltaBytes: entry.MemoryDeltaBytes,
	}
	if !entry.CreatedAt.IsZero() {
		m.CreatedAt = entry.CreatedAt
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}
