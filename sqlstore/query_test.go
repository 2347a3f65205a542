package sqlstore_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/relaydb/queue"
	"github.com/relaydb/queue/jobrow"
)

func TestInsertAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, queue.InsertSpec{Task: "noop", Timeout: time.Second}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Insert(ctx, queue.InsertSpec{Task: "noop", Timeout: time.Second, Delay: time.Hour}); err != nil {
		t.Fatal(err)
	}

	st, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if st.PendingNow != 1 {
		t.Fatalf("expected 1 pending_now, got %d", st.PendingNow)
	}
	if st.PendingLater != 1 {
		t.Fatalf("expected 1 pending_later, got %d", st.PendingLater)
	}
	if st.Reserved != 0 || st.DeadLetter != 0 {
		t.Fatalf("expected zero reserved/dead_letter, got %+v", st)
	}
}

func TestInsertAppliesDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, queue.InsertSpec{Task: "noop"})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := store.Reserve(ctx, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Id != id {
		t.Fatalf("expected to reserve inserted row, got %+v", rows)
	}
	row := rows[0]
	if row.MaxAttempts != jobrow.DefaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", row.MaxAttempts)
	}
	if row.Timeout != jobrow.DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", row.Timeout)
	}
	if row.Queue != jobrow.DefaultQueue {
		t.Fatalf("expected default queue, got %s", row.Queue)
	}
}
