package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/relaydb/queue/deadletter"
	"github.com/relaydb/queue/jobrow"
)

// jobModel is the bun mapping for the jobs table.
type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	Id       string `bun:"id,pk"`
	Queue    string `bun:"queue,notnull"`
	Priority int    `bun:"priority,notnull"`
	Task     string `bun:"task,notnull"`
	Payload  []byte `bun:"payload,type:blob"`

	Status   jobrow.Status `bun:"status,notnull,default:0"`
	Attempts uint32        `bun:"attempts,notnull,default:0"`

	MaxAttempts     uint32               `bun:"max_attempts,notnull"`
	RetryDelaySecs  int64                `bun:"retry_delay_seconds,notnull"`
	BackoffStrategy jobrow.BackoffStrategy `bun:"backoff_strategy,notnull,default:0"`

	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	AvailableAt time.Time  `bun:"available_at,notnull"`
	ReservedAt  *time.Time `bun:"reserved_at,nullzero"`

	LastError   string `bun:"last_error"`
	TimeoutSecs int64  `bun:"timeout_seconds,notnull"`
	Tags        []string `bun:"tags,type:jsonb"`
}

func (m *jobModel) toRow() *jobrow.Job {
	return &jobrow.Job{
		Id:              m.Id,
		Queue:           m.Queue,
		Priority:        m.Priority,
		Task:            m.Task,
		Payload:         m.Payload,
		Status:          m.Status,
		Attempts:        m.Attempts,
		MaxAttempts:     m.MaxAttempts,
		RetryDelay:      time.Duration(m.RetryDelaySecs) * time.Second,
		BackoffStrategy: m.BackoffStrategy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		AvailableAt:     m.AvailableAt,
		ReservedAt:      m.ReservedAt,
		LastError:       m.LastError,
		Timeout:         time.Duration(m.TimeoutSecs) * time.Second,
		Tags:            m.Tags,
	}
}

// deadLetterModel is the bun mapping for the failed_jobs table.
type deadLetterModel struct {
	bun.BaseModel `bun:"table:failed_jobs"`

	Id            string `bun:"id,pk"`
	Queue         string `bun:"queue,notnull"`
	Task          string `bun:"task,notnull"`
	Payload       []byte `bun:"payload,type:blob"`
	Exception     string `bun:"exception"`
	StackTrace    string `bun:"stack_trace"`
	FailedAt      time.Time `bun:"failed_at,notnull"`
	TotalAttempts uint32    `bun:"total_attempts,notnull"`
	RetryHistory  []deadletter.RetryEvent `bun:"retry_history,type:jsonb"`
	OriginalJobId string   `bun:"original_job_id,notnull"`
	Priority      int      `bun:"priority,notnull"`
	Tags          []string `bun:"tags,type:jsonb"`
}

func (m *deadLetterModel) toRow() *deadletter.DeadLetter {
	return &deadletter.DeadLetter{
		Id:            m.Id,
		Queue:         m.Queue,
		Task:          m.Task,
		Payload:       m.Payload,
		Exception:     m.Exception,
		StackTrace:    m.StackTrace,
		FailedAt:      m.FailedAt,
		TotalAttempts: m.TotalAttempts,
		RetryHistory:  m.RetryHistory,
		OriginalJobId: m.OriginalJobId,
		Priority:      m.Priority,
		Tags:          m.Tags,
	}
}

func fromRow(row *jobModel) *deadLetterModel {
	return &deadLetterModel{
		Id:            row.Id,
		Queue:         row.Queue,
		Task:          row.Task,
		Payload:       row.Payload,
		FailedAt:      row.UpdatedAt,
		TotalAttempts: row.Attempts,
		OriginalJobId: row.Id,
		Priority:      row.Priority,
		Tags:          row.Tags,
	}
}

// logModel is the bun mapping for the job_logs table. The engine only
// ever writes it; nothing in the hot path reads it back.
type logModel struct {
	bun.BaseModel `bun:"table:job_logs"`

	Id               int64          `bun:"id,pk,autoincrement"`
	JobId            string         `bun:"job_id,notnull"`
	Queue            string         `bun:"queue,notnull"`
	Level            string         `bun:"level,notnull"`
	Message          string         `bun:"message"`
	Context          map[string]any `bun:"context,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ElapsedMillis    int64          `bun:"elapsed_millis"`
	MemoryDeltaBytes int64          `bun:"memory_delta_bytes"`
}
