// Package model defines the auction domain types shared across the pipeline.
package model

import (
	"time"
)

// AuctionStatus is the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionPending   AuctionStatus = "pending"
	AuctionActive    AuctionStatus = "active"
	AuctionCompleted AuctionStatus = "completed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// ValidAuctionTransition reports whether an auction may move from one
// status to another. Transitions are admin-driven only.
func ValidAuctionTransition(from, to AuctionStatus) bool {
	switch from {
	case AuctionPending:
		return to == AuctionActive || to == AuctionCancelled
	case AuctionActive:
		return to == AuctionCompleted || to == AuctionCancelled
	}
	return false
}

// PlayerStatus is the sale status of a player within one auction.
type PlayerStatus string

const (
	PlayerAvailable PlayerStatus = "available"
	PlayerSold      PlayerStatus = "sold"
	PlayerUnsold    PlayerStatus = "unsold"
)

// Auction is the durable ledger record for one auction.
type Auction struct {
	ID              string        `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Name            string        `gorm:"column:name;type:varchar(128)" json:"name"`
	Status          AuctionStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	MinBidIncrement int64         `gorm:"column:min_bid_increment;not null" json:"minBidIncrement"`
	MaxBudget       int64         `gorm:"column:max_budget;not null" json:"maxBudget"`
	CreatedAt       time.Time     `gorm:"column:created_at;default:now()" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;default:now()" json:"updatedAt"`
}

// TableName implements the gorm naming override.
func (Auction) TableName() string { return "auctions" }

// AuctionPlayer is the durable ledger record for one player inside one
// auction. Mutated only by sale/unsold finalization, never by the bid
// processor.
type AuctionPlayer struct {
	ID        uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	AuctionID string       `gorm:"column:auction_id;type:varchar(64);not null;uniqueIndex:idx_auction_player" json:"auctionId"`
	PlayerID  string       `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:idx_auction_player" json:"playerId"`
	BasePrice int64        `gorm:"column:base_price;not null" json:"basePrice"`
	Status    PlayerStatus `gorm:"column:status;type:varchar(16);not null;default:'available'" json:"status"`
	SoldTo    string       `gorm:"column:sold_to;type:varchar(64)" json:"soldTo,omitempty"`
	SoldPrice int64        `gorm:"column:sold_price" json:"soldPrice,omitempty"`
	UpdatedAt time.Time    `gorm:"column:updated_at;default:now()" json:"updatedAt"`
}

// TableName implements the gorm naming override.
func (AuctionPlayer) TableName() string { return "auction_players" }

// TeamBudget is the durable ledger record for one team's remaining budget
// in one auction. Decremented only at sale finalization.
type TeamBudget struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	AuctionID       string    `gorm:"column:auction_id;type:varchar(64);not null;uniqueIndex:idx_auction_team" json:"auctionId"`
	TeamID          string    `gorm:"column:team_id;type:varchar(64);not null;uniqueIndex:idx_auction_team" json:"teamId"`
	RemainingBudget int64     `gorm:"column:remaining_budget;not null" json:"remainingBudget"`
	UpdatedAt       time.Time `gorm:"column:updated_at;default:now()" json:"updatedAt"`
}

// TableName implements the gorm naming override.
func (TeamBudget) TableName() string { return "team_budgets" }

// Bid is the in-flight message carried by the ordering queue. It is not
// persisted beyond the queue; the server stamps ID and SubmittedAt at the
// gateway.
type Bid struct {
	ID          string    `json:"id"`
	AuctionID   string    `json:"auctionId"`
	PlayerID    string    `json:"playerId"`
	TeamID      string    `json:"teamId"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// PlayerBidState is the fast, ephemeral bid state for one player's bidding
// window, keyed by (auctionID, playerID). Seeded when the admin sends the
// player to auction, advanced by the bid processor, cleared on sale or
// unsold.
type PlayerBidState struct {
	AuctionID       string    `json:"auctionId"`
	PlayerID        string    `json:"playerId"`
	BasePrice       int64     `json:"basePrice"`
	MinBidIncrement int64     `json:"minBidIncrement"`
	CurrentBid      int64     `json:"currentBid"`
	CurrentTeam     string    `json:"currentTeam,omitempty"`
	Open            bool      `json:"open"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasBid reports whether at least one bid has been accepted in this window.
func (s *PlayerBidState) HasBid() bool {
	return s.CurrentTeam != ""
}
