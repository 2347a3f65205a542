package retry_test

import (
	"testing"
	"time"

	"github.com/relaydb/queue/jobrow"
	"github.com/relaydb/queue/retry"
)

func TestNextDelayStrategies(t *testing.T) {
	base := 10 * time.Second

	cases := []struct {
		name     string
		strategy jobrow.BackoffStrategy
		attempt  uint32
		want     time.Duration
	}{
		{"exponential attempt 1", jobrow.Exponential, 1, 10 * time.Second},
		{"exponential attempt 2", jobrow.Exponential, 2, 20 * time.Second},
		{"exponential attempt 3", jobrow.Exponential, 3, 40 * time.Second},
		{"linear attempt 1", jobrow.Linear, 1, 10 * time.Second},
		{"linear attempt 3", jobrow.Linear, 3, 30 * time.Second},
		{"fixed attempt 1", jobrow.Fixed, 1, 10 * time.Second},
		{"fixed attempt 5", jobrow.Fixed, 5, 10 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := retry.NextDelay(tc.strategy, base, tc.attempt)
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNextDelayUnknownStrategyFallsBackToExponential(t *testing.T) {
	base := 5 * time.Second
	got := retry.NextDelay(jobrow.BackoffStrategy(99), base, 3)
	want := retry.NextDelay(jobrow.Exponential, base, 3)
	if got != want {
		t.Fatalf("expected unknown strategy to fall back to exponential: got %s, want %s", got, want)
	}
}

func TestNextDelayClampedToMaxDelay(t *testing.T) {
	got := retry.NextDelay(jobrow.Exponential, time.Hour, 10)
	if got != retry.MaxDelay {
		t.Fatalf("expected delay clamped to MaxDelay, got %s", got)
	}
}

func TestNextDelayAttemptBelowOneTreatedAsOne(t *testing.T) {
	base := 7 * time.Second
	got := retry.NextDelay(jobrow.Exponential, base, 0)
	want := retry.NextDelay(jobrow.Exponential, base, 1)
	if got != want {
		t.Fatalf("expected attempt=0 to behave like attempt=1: got %s, want %s", got, want)
	}
}

// TestScheduleJitterBounds: for any (strategy, base, attempt), the
// jittered delay lies in [0.9*f, 1.1*f] and <= MaxDelay.
func TestScheduleJitterBounds(t *testing.T) {
	strategies := []jobrow.BackoffStrategy{jobrow.Exponential, jobrow.Linear, jobrow.Fixed}
	bases := []time.Duration{time.Second, 10 * time.Second, 90 * time.Second}
	attempts := []uint32{1, 2, 3, 5}

	for _, strategy := range strategies {
		for _, base := range bases {
			for _, attempt := range attempts {
				f := retry.NextDelay(strategy, base, attempt)
				lo := time.Duration(0.9 * float64(f))
				hi := time.Duration(1.1 * float64(f))
				for i := 0; i < 20; i++ {
					got := retry.Schedule(strategy, base, attempt)
					if got > retry.MaxDelay {
						t.Fatalf("schedule exceeded MaxDelay: %s", got)
					}
					if got < lo || got > hi {
						t.Fatalf("strategy=%v base=%s attempt=%d: jittered delay %s outside [%s, %s]",
							strategy, base, attempt, got, lo, hi)
					}
				}
			}
		}
	}
}

func TestApplyJitterZeroDelayStaysZero(t *testing.T) {
	if got := retry.ApplyJitter(0); got != 0 {
		t.Fatalf("expected zero delay to stay zero, got %s", got)
	}
}
