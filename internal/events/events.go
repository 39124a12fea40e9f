// Package events defines the closed set of broadcast event variants pushed
// to auction watchers. Every event travels in a tagged, versioned envelope
// so UI clients can dispatch on type without sniffing payload shapes.
package events

import (
	"encoding/json"

	"github.com/teamdraft/auctiond/internal/model"
)

// Event type tags.
const (
	TypeBidUpdated    = "bid-updated"
	TypePlayerSold    = "player-sold"
	TypePlayerUnsold  = "player-unsold"
	TypeBiddingOpened = "bidding-opened"
)

// SchemaVersion is bumped when any payload shape changes.
const SchemaVersion = 1

// Envelope wraps one event for the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// BidUpdated is emitted after each accepted bid.
type BidUpdated struct {
	AuctionID   string `json:"auctionId"`
	PlayerID    string `json:"playerId"`
	CurrentBid  int64  `json:"currentBid"`
	CurrentTeam string `json:"currentTeam"`
}

// PlayerSold is emitted at sale finalization. It doubles as the control
// signal disabling further bidding on the player.
type PlayerSold struct {
	AuctionID string `json:"auctionId"`
	PlayerID  string `json:"playerId"`
	TeamID    string `json:"teamId"`
	Amount    int64  `json:"amount"`
}

// PlayerUnsold is emitted when the admin marks a player unsold; watchers
// reset their bid display for the player.
type PlayerUnsold struct {
	AuctionID string `json:"auctionId"`
	PlayerID  string `json:"playerId"`
}

// BiddingOpened is emitted when the admin sends a player to auction,
// opening a fresh bidding window.
type BiddingOpened struct {
	AuctionID       string `json:"auctionId"`
	PlayerID        string `json:"playerId"`
	BasePrice       int64  `json:"basePrice"`
	MinBidIncrement int64  `json:"minBidIncrement"`
}

func wrap(eventType string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Type: eventType, Version: SchemaVersion, Data: data}
}

// NewBidUpdated builds a bid-updated envelope from committed state.
func NewBidUpdated(state *model.PlayerBidState) Envelope {
	return wrap(TypeBidUpdated, BidUpdated{
		AuctionID:   state.AuctionID,
		PlayerID:    state.PlayerID,
		CurrentBid:  state.CurrentBid,
		CurrentTeam: state.CurrentTeam,
	})
}

// NewPlayerSold builds a player-sold envelope.
func NewPlayerSold(auctionID, playerID, teamID string, amount int64) Envelope {
	return wrap(TypePlayerSold, PlayerSold{
		AuctionID: auctionID,
		PlayerID:  playerID,
		TeamID:    teamID,
		Amount:    amount,
	})
}

// NewPlayerUnsold builds a player-unsold envelope.
func NewPlayerUnsold(auctionID, playerID string) Envelope {
	return wrap(TypePlayerUnsold, PlayerUnsold{
		AuctionID: auctionID,
		PlayerID:  playerID,
	})
}

// NewBiddingOpened builds a bidding-opened envelope.
func NewBiddingOpened(state *model.PlayerBidState) Envelope {
	return wrap(TypeBiddingOpened, BiddingOpened{
		AuctionID:       state.AuctionID,
		PlayerID:        state.PlayerID,
		BasePrice:       state.BasePrice,
		MinBidIncrement: state.MinBidIncrement,
	})
}
