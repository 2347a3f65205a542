package jobrow

import "github.com/google/uuid"

// NewId mints a row identifier for jobs, failed_jobs and any other table
// keyed the same way.
//
// Store.Reserve's ordering contract breaks ties on "id ASC" and
// documents that tie as "insertion order" — which only holds
// if ids are assigned in roughly increasing order. A random UUIDv4 would
// not do that (two ids compare in an order unrelated to insertion), so
// both Store implementations mint ids through this helper rather than
// calling uuid.NewString() directly: UUIDv7 carries a millisecond
// timestamp in its high bits, and the canonical hex string representation
// preserves that ordering under plain string comparison.
func NewId() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy/clock failure; fall back to a random v4 rather than
		// panicking the insert path. Ordering on ties degrades to
		// arbitrary in this rare case only.
		return uuid.NewString()
	}
	return id.String()
}
