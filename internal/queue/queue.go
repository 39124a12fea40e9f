// Package queue provides the ordering queue that turns concurrent bid
// submissions into one FIFO sequence for the single bid processor.
package queue

import (
	"context"

	"github.com/teamdraft/auctiond/internal/model"
)

// Handler processes one dequeued bid. Returning an error leaves the
// message unacknowledged so it is redelivered; business rejections must
// return nil after logging.
type Handler func(ctx context.Context, bid model.Bid) error

// Queue is the ordering queue. Delivery to the consumer is at-least-once
// and FIFO; the consumer must tolerate redelivery of an applied bid.
type Queue interface {
	// Enqueue appends a bid to the log. A failure here means the bid was
	// visibly rejected, never silently dropped.
	Enqueue(ctx context.Context, bid model.Bid) error

	// Consume delivers bids to handler in append order until ctx is
	// cancelled. It reconnects with bounded exponential backoff.
	Consume(ctx context.Context, handler Handler) error
}
