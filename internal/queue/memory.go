package queue

import (
	"context"
	"time"

	"github.com/teamdraft/auctiond/internal/model"
)

// MemoryQueue is a channel-backed Queue for tests and single-process
// development. FIFO, no durability.
type MemoryQueue struct {
	bids chan model.Bid
}

// NewMemoryQueue creates a queue buffering up to size bids.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{bids: make(chan model.Bid, size)}
}

// Enqueue appends the bid, failing when the buffer is full rather than
// blocking the gateway.
func (q *MemoryQueue) Enqueue(ctx context.Context, bid model.Bid) error {
	select {
	case q.bids <- bid:
		return nil
	case <-ctx.Done():
		return model.WrapError(model.KindQueueUnavailable, "enqueue bid", ctx.Err())
	default:
		return model.NewError(model.KindQueueUnavailable, "queue full")
	}
}

// Consume delivers bids in order until ctx is cancelled. Handler errors
// requeue the bid at the front, retried with the same bounded backoff
// as the stream consumer.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case bid := <-q.bids:
			backoff := backoffMin
			for {
				if err := handler(ctx, bid); err == nil {
					break
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				backoff = nextBackoff(backoff)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
