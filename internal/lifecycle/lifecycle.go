// Package lifecycle owns the auction and player state machines and the
// terminal operations that move a winning bid from fast state into the
// durable ledger.
package lifecycle

import (
	"context"

	"github.com/teamdraft/auctiond/internal/events"
	"github.com/teamdraft/auctiond/internal/ledger"
	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/internal/store"
	"github.com/teamdraft/auctiond/pkg/logger"
)

// Broadcaster fans lifecycle events out to auction watchers.
type Broadcaster interface {
	Broadcast(auctionID string, event events.Envelope)
}

// SaleRecorder counts finalized sales. Implemented by metrics.Metrics.
type SaleRecorder interface {
	RecordSale(amount int64)
}

// Manager drives admin-triggered lifecycle operations. It is the only
// writer of the durable ledger and, besides the bid processor, the only
// writer of PlayerBidState, and the two never run concurrently for the
// same player window.
type Manager struct {
	ledger   ledger.Ledger
	store    store.BidStateStore
	hub      Broadcaster
	recorder SaleRecorder
}

// New creates a lifecycle manager. hub and recorder may be nil.
func New(l ledger.Ledger, s store.BidStateStore, hub Broadcaster, recorder SaleRecorder) *Manager {
	return &Manager{ledger: l, store: s, hub: hub, recorder: recorder}
}

// TransitionAuction applies one admin-driven auction status change.
func (m *Manager) TransitionAuction(ctx context.Context, auctionID string, to model.AuctionStatus) error {
	if err := m.ledger.SetAuctionStatus(ctx, auctionID, to); err != nil {
		return err
	}
	log := logger.Lifecycle()
	log.Info().
		Str("auction_id", auctionID).
		Str("status", string(to)).
		Msg("auction status changed")
	return nil
}

// SendPlayer opens a fresh bidding window for an available player in an
// active auction: PlayerBidState is seeded from the player's base price
// and the auction's minimum increment, and watchers are told bidding is
// open.
func (m *Manager) SendPlayer(ctx context.Context, auctionID, playerID string) (*model.PlayerBidState, error) {
	auction, err := m.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != model.AuctionActive {
		return nil, model.NewError(model.KindAuctionNotActive, "auction is not active")
	}

	player, err := m.ledger.GetPlayer(ctx, auctionID, playerID)
	if err != nil {
		return nil, err
	}
	switch player.Status {
	case model.PlayerSold:
		return nil, model.NewError(model.KindAlreadySold, "player already sold")
	case model.PlayerUnsold:
		return nil, model.NewError(model.KindAlreadyUnsold, "player already unsold")
	}

	state := &model.PlayerBidState{
		AuctionID:       auctionID,
		PlayerID:        playerID,
		BasePrice:       player.BasePrice,
		MinBidIncrement: auction.MinBidIncrement,
		Open:            true,
	}
	if err := m.store.Set(ctx, state); err != nil {
		return nil, err
	}

	if m.hub != nil {
		m.hub.Broadcast(auctionID, events.NewBiddingOpened(state))
	}
	log := logger.Lifecycle()
	log.Info().
		Str("auction_id", auctionID).
		Str("player_id", playerID).
		Int64("base_price", state.BasePrice).
		Msg("bidding window opened")
	return state, nil
}

// FinalizeSale atomically commits the sale into the ledger, clears the
// bidding window, and broadcasts the sale. A redundant or retried call
// returns AlreadySold without a second budget deduction; the stale
// window, if any, is still cleared so retries converge.
func (m *Manager) FinalizeSale(ctx context.Context, auctionID, playerID, teamID string, amount int64) error {
	log := logger.Lifecycle().With().
		Str("auction_id", auctionID).
		Str("player_id", playerID).
		Str("team_id", teamID).
		Int64("amount", amount).
		Logger()

	m.warnOnStateMismatch(ctx, auctionID, playerID, teamID, amount)

	if err := m.ledger.FinalizeSale(ctx, auctionID, playerID, teamID, amount); err != nil {
		if model.IsKind(err, model.KindAlreadySold) || model.IsKind(err, model.KindAlreadyUnsold) {
			// A previous attempt may have committed but failed to clear
			// the window; clearing here makes the retry heal it.
			if clearErr := m.store.Clear(ctx, auctionID, playerID); clearErr != nil {
				log.Error().Err(clearErr).Msg("bid state clear failed on finalization retry")
			}
		}
		return err
	}

	if err := m.store.Clear(ctx, auctionID, playerID); err != nil {
		// The sale is committed; surface the clear failure so the admin
		// retries, which lands in the AlreadySold path above.
		log.Error().Err(err).Msg("sale committed but bid state clear failed")
		return err
	}

	if m.hub != nil {
		m.hub.Broadcast(auctionID, events.NewPlayerSold(auctionID, playerID, teamID, amount))
	}
	if m.recorder != nil {
		m.recorder.RecordSale(amount)
	}
	log.Info().Msg("sale finalized")
	return nil
}

// MarkUnsold closes an available player's window without a sale and
// broadcasts the reset.
func (m *Manager) MarkUnsold(ctx context.Context, auctionID, playerID string) error {
	log := logger.Lifecycle().With().
		Str("auction_id", auctionID).
		Str("player_id", playerID).
		Logger()

	if err := m.ledger.MarkUnsold(ctx, auctionID, playerID); err != nil {
		if model.IsKind(err, model.KindAlreadySold) || model.IsKind(err, model.KindAlreadyUnsold) {
			if clearErr := m.store.Clear(ctx, auctionID, playerID); clearErr != nil {
				log.Error().Err(clearErr).Msg("bid state clear failed on unsold retry")
			}
		}
		return err
	}

	if err := m.store.Clear(ctx, auctionID, playerID); err != nil {
		log.Error().Err(err).Msg("player marked unsold but bid state clear failed")
		return err
	}

	if m.hub != nil {
		m.hub.Broadcast(auctionID, events.NewPlayerUnsold(auctionID, playerID))
	}
	log.Info().Msg("player marked unsold")
	return nil
}

// warnOnStateMismatch logs when the admin finalizes a sale at terms that
// differ from the committed bid state. The admin's terms still win; the
// log line is the audit trail.
func (m *Manager) warnOnStateMismatch(ctx context.Context, auctionID, playerID, teamID string, amount int64) {
	state, err := m.store.Get(ctx, auctionID, playerID)
	if err != nil || state == nil || !state.HasBid() {
		return
	}
	if state.CurrentTeam != teamID || state.CurrentBid != amount {
		log := logger.Lifecycle()
		log.Warn().
			Str("auction_id", auctionID).
			Str("player_id", playerID).
			Str("sale_team", teamID).
			Int64("sale_amount", amount).
			Str("current_team", state.CurrentTeam).
			Int64("current_bid", state.CurrentBid).
			Msg("sale terms differ from committed bid state")
	}
}
