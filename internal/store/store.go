// Package store holds the fast per-player bid state. The durable ledger
// lives in the ledger package; nothing here survives a sale.
package store

import (
	"context"

	"github.com/teamdraft/auctiond/internal/model"
)

// BidStateStore is the read/write surface for PlayerBidState. Get returns
// (nil, nil) when no bidding window exists for the key.
//
// Only the bid processor and the lifecycle manager write through this
// interface, and never concurrently for the same key.
type BidStateStore interface {
	Get(ctx context.Context, auctionID, playerID string) (*model.PlayerBidState, error)
	Set(ctx context.Context, state *model.PlayerBidState) error
	Clear(ctx context.Context, auctionID, playerID string) error
}
