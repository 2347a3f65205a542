// Package deadletter defines the durable record of a terminally failed
// job, kept separate from the live jobs table.
package deadletter

import "time"

// RetryEvent is one entry in a DeadLetter's append-only retry history.
type RetryEvent struct {
	Attempt uint32
	Error   string
	At      time.Time
}

// DeadLetter represents a row in the failed_jobs table.
//
// DeadLetter is write-only from the engine's perspective: the store writes
// a row inside the same transaction that deletes the originating jobs row
// (Store.FailTerminal), and only operator-facing admin calls
// (GetFailed/RetryFailed/PurgeFailed) ever read or delete it again.
//
// OriginalJobId is preserved for audit purposes even though RetryFailed
// creates a brand-new jobs row with a new id; the dead-letter record
// itself is never revived, only used as a template.
type DeadLetter struct {
	Id            string
	Queue         string
	Task          string
	Payload       []byte
	Exception     string
	StackTrace    string
	FailedAt      time.Time
	TotalAttempts uint32
	RetryHistory  []RetryEvent
	OriginalJobId string
	Priority      int
	Tags          []string
}
