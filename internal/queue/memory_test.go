package queue

import (
	"context"
	"testing"
	"time"

	"github.com/teamdraft/auctiond/internal/model"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, id := range []string{"bid-1", "bid-2", "bid-3"} {
		if err := q.Enqueue(ctx, model.Bid{ID: id, Amount: int64(i)}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	var order []string
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, bid model.Bid) error {
			order = append(order, bid.ID)
			if len(order) == 3 {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not drain the queue")
	}

	want := []string{"bid-1", "bid-2", "bid-3"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("Expected order %v, got %v", want, order)
		}
	}
}

func TestMemoryQueueFullRejects(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, model.Bid{ID: "bid-1"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := q.Enqueue(ctx, model.Bid{ID: "bid-2"})
	if !model.IsKind(err, model.KindQueueUnavailable) {
		t.Errorf("Expected QueueUnavailable when full, got %v", err)
	}
}

// A handler error redelivers the same bid instead of losing it, with a
// backoff between attempts rather than a busy loop.
func TestMemoryQueueRetriesOnHandlerError(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, model.Bid{ID: "bid-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	start := time.Now()
	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, bid model.Bid) error {
			attempts++
			if attempts < 3 {
				return model.NewError(model.KindStoreUnavailable, "transient")
			}
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not finish")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	// Two failures mean two backoff sleeps (100ms, then 200ms).
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("Expected retries to back off, finished in %v", elapsed)
	}
}
