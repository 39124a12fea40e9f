// Package ledger is the durable system of record: auctions, per-auction
// players, and team budgets. Bids never write here; only sale and unsold
// finalization do.
package ledger

import (
	"context"

	"github.com/teamdraft/auctiond/internal/model"
)

// Ledger exposes the reads the pipeline needs and the two terminal writes
// owned by the lifecycle manager.
type Ledger interface {
	GetAuction(ctx context.Context, auctionID string) (*model.Auction, error)
	SetAuctionStatus(ctx context.Context, auctionID string, to model.AuctionStatus) error

	GetPlayer(ctx context.Context, auctionID, playerID string) (*model.AuctionPlayer, error)
	GetTeamBudget(ctx context.Context, auctionID, teamID string) (*model.TeamBudget, error)

	// FinalizeSale atomically marks the player sold and deducts exactly
	// amount from the team's budget. Fails with AlreadySold (or
	// AlreadyUnsold) when the player's window was finalized before, and
	// with InsufficientBudget when the deduction would go negative. A
	// retried admin request therefore never double-charges.
	FinalizeSale(ctx context.Context, auctionID, playerID, teamID string, amount int64) error

	// MarkUnsold atomically marks an available player unsold.
	MarkUnsold(ctx context.Context, auctionID, playerID string) error
}
