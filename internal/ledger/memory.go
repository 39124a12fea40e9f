package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/teamdraft/auctiond/internal/model"
)

// MemoryLedger implements Ledger in memory with the same conditional
// semantics as the Postgres ledger. Used by tests and single-node
// development.
type MemoryLedger struct {
	mu       sync.Mutex
	auctions map[string]*model.Auction
	players  map[string]*model.AuctionPlayer
	budgets  map[string]*model.TeamBudget
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		auctions: make(map[string]*model.Auction),
		players:  make(map[string]*model.AuctionPlayer),
		budgets:  make(map[string]*model.TeamBudget),
	}
}

func pairKey(auctionID, other string) string { return auctionID + "/" + other }

// PutAuction seeds an auction record.
func (l *MemoryLedger) PutAuction(auction model.Auction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.auctions[auction.ID] = &auction
}

// PutPlayer seeds an auction player record.
func (l *MemoryLedger) PutPlayer(player model.AuctionPlayer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.players[pairKey(player.AuctionID, player.PlayerID)] = &player
}

// PutTeamBudget seeds a team budget record.
func (l *MemoryLedger) PutTeamBudget(budget model.TeamBudget) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[pairKey(budget.AuctionID, budget.TeamID)] = &budget
}

// GetAuction loads one auction.
func (l *MemoryLedger) GetAuction(_ context.Context, auctionID string) (*model.Auction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	auction, ok := l.auctions[auctionID]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "auction not found")
	}
	copied := *auction
	return &copied, nil
}

// SetAuctionStatus applies one validated status transition.
func (l *MemoryLedger) SetAuctionStatus(_ context.Context, auctionID string, to model.AuctionStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	auction, ok := l.auctions[auctionID]
	if !ok {
		return model.NewError(model.KindNotFound, "auction not found")
	}
	if !model.ValidAuctionTransition(auction.Status, to) {
		return model.NewError(model.KindInvalidRequest,
			"invalid auction transition "+string(auction.Status)+" -> "+string(to))
	}
	auction.Status = to
	auction.UpdatedAt = time.Now()
	return nil
}

// GetPlayer loads one auction player.
func (l *MemoryLedger) GetPlayer(_ context.Context, auctionID, playerID string) (*model.AuctionPlayer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	player, ok := l.players[pairKey(auctionID, playerID)]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "player not found in auction")
	}
	copied := *player
	return &copied, nil
}

// GetTeamBudget loads one team's remaining budget.
func (l *MemoryLedger) GetTeamBudget(_ context.Context, auctionID, teamID string) (*model.TeamBudget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	budget, ok := l.budgets[pairKey(auctionID, teamID)]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "team not in auction")
	}
	copied := *budget
	return &copied, nil
}

// FinalizeSale mirrors the transactional semantics of the Postgres
// ledger: status guard first, then the budget guard, all-or-nothing.
func (l *MemoryLedger) FinalizeSale(_ context.Context, auctionID, playerID, teamID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	player, ok := l.players[pairKey(auctionID, playerID)]
	if !ok {
		return model.NewError(model.KindNotFound, "player not found in auction")
	}
	switch player.Status {
	case model.PlayerSold:
		return model.NewError(model.KindAlreadySold, "player already sold")
	case model.PlayerUnsold:
		return model.NewError(model.KindAlreadyUnsold, "player already unsold")
	}

	budget, ok := l.budgets[pairKey(auctionID, teamID)]
	if !ok {
		return model.NewError(model.KindNotFound, "team not in auction")
	}
	if budget.RemainingBudget < amount {
		return model.NewError(model.KindInsufficientBudget, "sale exceeds remaining budget")
	}

	player.Status = model.PlayerSold
	player.SoldTo = teamID
	player.SoldPrice = amount
	player.UpdatedAt = time.Now()
	budget.RemainingBudget -= amount
	budget.UpdatedAt = time.Now()
	return nil
}

// MarkUnsold closes an available player's window without a sale.
func (l *MemoryLedger) MarkUnsold(_ context.Context, auctionID, playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	player, ok := l.players[pairKey(auctionID, playerID)]
	if !ok {
		return model.NewError(model.KindNotFound, "player not found in auction")
	}
	switch player.Status {
	case model.PlayerSold:
		return model.NewError(model.KindAlreadySold, "player already sold")
	case model.PlayerUnsold:
		return model.NewError(model.KindAlreadyUnsold, "player already unsold")
	}

	player.Status = model.PlayerUnsold
	player.UpdatedAt = time.Now()
	return nil
}
