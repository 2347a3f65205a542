// Package retry computes the backoff offset applied before a failed job
// becomes eligible again: a pure function mapping (strategy, base delay,
// attempt) to a scheduling offset.
package retry

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/relaydb/queue/jobrow"
)

// MaxDelay is the clamp applied to every computed delay, regardless of
// strategy or attempt count.
const MaxDelay = jobrow.MaxDelay

// JitterFraction is the ±10% perturbation applied only when a delay is
// about to be used to schedule a row, never when displaying a preview.
const JitterFraction = 0.10

// NextDelay computes the base (unjittered) offset for the given strategy,
// base delay and attempt number, clamped to MaxDelay.
//
//   - Exponential: baseDelay × 2^(attempt-1)
//   - Linear:      baseDelay × attempt
//   - Fixed:       baseDelay
//
// Strategy values outside the known enum fall back to Exponential.
// attempt is clamped to a minimum of 1 so that NextDelay is well-defined
// for a job on its first failure.
func NextDelay(strategy jobrow.BackoffStrategy, baseDelay time.Duration, attempt uint32) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch strategy {
	case jobrow.Linear:
		d = baseDelay * time.Duration(attempt)
	case jobrow.Fixed:
		d = baseDelay
	default: // Exponential and anything unrecognized
		exp := math.Pow(2, float64(attempt-1))
		d = time.Duration(float64(baseDelay) * exp)
	}
	return clamp(d)
}

func clamp(d time.Duration) time.Duration {
	if d > MaxDelay {
		return MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// ApplyJitter perturbs d by up to ±JitterFraction using a
// cryptographically-adequate random source, so that many workers
// restarting at the same time do not realign on the same retry instant.
// The result is re-clamped to MaxDelay.
//
// ApplyJitter must only be called when a delay is about to be applied to
// a row; computing a delay for display/preview purposes should call
// NextDelay alone.
func ApplyJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	delta := float64(d) * JitterFraction
	// pick a uniform offset in [-delta, +delta]
	span := int64(2 * delta)
	if span <= 0 {
		return clamp(d)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		// crypto/rand failure is effectively unrecoverable entropy
		// starvation; fall back to the unjittered value rather than
		// panicking the caller.
		return clamp(d)
	}
	offset := n.Int64() - int64(delta)
	return clamp(d + time.Duration(offset))
}

// Schedule computes the jittered, clamped delay for (strategy, baseDelay,
// attempt) in one call — the composition every settlement path should use
// when computing a job's next AvailableAt.
func Schedule(strategy jobrow.BackoffStrategy, baseDelay time.Duration, attempt uint32) time.Duration {
	return ApplyJitter(NextDelay(strategy, baseDelay, attempt))
}
