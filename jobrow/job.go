// Package jobrow defines the persisted shape of a unit of work managed by
// the queue: the Job row itself and the small enums that describe its
// lifecycle and retry behavior.
package jobrow

import "time"

// Job represents a row in the jobs table.
//
// Job is a snapshot of storage state at the time it was read. Mutating a
// Job value directly does not change the underlying row; transitions must
// go through the Store contract (Insert/Reserve/Complete/FailRetry/
// FailTerminal). Job values are typically returned by Store.Reserve and
// passed back to the store for settlement; user code is not expected to
// construct them outside of tests.
//
// Id is assigned by the store on Insert. Queue defaults to "default".
// Priority is 0-10, lower runs first. Task must resolve to a handler via
// a JobResolver. Payload is an opaque JSON object, decoded by the executor
// immediately before invoking the handler.
//
// Attempts is incremented every time the row is reserved (not on
// settlement), so a crashed worker still "burns" an attempt once the
// janitor reclaims its lease. MaxAttempts bounds how many times the job
// may be reserved before a failure becomes terminal.
//
// AvailableAt only moves forward across the row's lifetime: Insert sets it
// to now+delay, FailRetry/reclaim move it further into the future, nothing
// ever moves it backward.
type Job struct {
	Id       string
	Queue    string
	Priority int
	Task     string
	Payload  []byte

	Status   Status
	Attempts uint32

	MaxAttempts     uint32
	RetryDelay      time.Duration
	BackoffStrategy BackoffStrategy

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AvailableAt time.Time
	ReservedAt  *time.Time

	LastError string
	Timeout   time.Duration
	Tags      []string
}

// HasTag reports whether the row carries the given user-supplied tag.
func (j *Job) HasTag(tag string) bool {
	for _, t := range j.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MaxLastErrorLen is the storage-enforced truncation length for
// LastError.
const MaxLastErrorLen = 5000

// TruncateError truncates msg to MaxLastErrorLen runes, the way the store
// is required to persist LastError.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxLastErrorLen {
		return msg
	}
	return string(r[:MaxLastErrorLen])
}

// Defaults applied when an enqueue leaves the corresponding option unset.
const (
	DefaultQueue           = "default"
	DefaultPriority        = 5
	DefaultMaxAttempts     = 3
	DefaultTimeout         = 300 * time.Second
	DefaultRetryDelay      = 60 * time.Second
	DefaultBackoffStrategy = Exponential
	DefaultLeaseGrace      = 30 * time.Second
	// MaxDelay is the clamp applied by the retry policy.
	MaxDelay = 3600 * time.Second
)
