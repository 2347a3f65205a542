package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	queue "github.com/relaydb/queue"
)

func TestJanitorReclaimsExpiredLease(t *testing.T) {
	store := newFakeStore(time.Now)
	ctx := context.Background()

	id, err := store.Insert(ctx, queue.InsertSpec{
		Task:        "slow",
		Timeout:     10 * time.Millisecond,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reserve(ctx, nil, 1); err != nil {
		t.Fatal(err)
	}

	janitor := queue.NewJanitor(store, &queue.JanitorConfig{
		Interval: 10 * time.Millisecond,
		Grace:    10 * time.Millisecond,
	}, discardLogger())

	jctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := janitor.Start(jctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	var reclaimed bool
	for time.Now().Before(deadline) {
		st, err := store.Stats(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if st.PendingNow == 1 && st.Reserved == 0 {
			reclaimed = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !reclaimed {
		t.Fatal("expected lease to be reclaimed back to pending")
	}

	if _, err := store.GetFailedOne(ctx, id); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("job should not be in dead letter yet, got err=%v", err)
	}

	_ = janitor.Stop(time.Second)
}

func TestJanitorEscalatesExhaustedLeaseToDeadLetter(t *testing.T) {
	store := newFakeStore(time.Now)
	ctx := context.Background()

	id, err := store.Insert(ctx, queue.InsertSpec{
		Task:        "slow",
		Timeout:     5 * time.Millisecond,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reserve(ctx, nil, 1); err != nil {
		t.Fatal(err)
	}

	janitor := queue.NewJanitor(store, &queue.JanitorConfig{
		Interval: 10 * time.Millisecond,
		Grace:    5 * time.Millisecond,
	}, discardLogger())

	jctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := janitor.Start(jctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	var dl error
	for time.Now().Before(deadline) {
		if _, dl = store.GetFailedOne(ctx, id); dl == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if dl != nil {
		t.Fatalf("expected job to land in dead letter once attempts exhausted, got err=%v", dl)
	}

	_ = janitor.Stop(time.Second)
}

func TestJanitorDoubleStartStop(t *testing.T) {
	store := newFakeStore(time.Now)
	janitor := queue.NewJanitor(store, &queue.JanitorConfig{Interval: time.Second}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := janitor.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := janitor.Start(ctx); !errors.Is(err, queue.ErrDoubleStarted) {
		t.Fatalf("expected ErrDoubleStarted, got %v", err)
	}
	if err := janitor.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := janitor.Stop(time.Second); !errors.Is(err, queue.ErrDoubleStopped) {
		t.Fatalf("expected ErrDoubleStopped, got %v", err)
	}
}
