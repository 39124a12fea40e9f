package store

import (
	"context"
	"testing"

	"github.com/teamdraft/auctiond/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state, err := s.Get(ctx, "auction-1", "player-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state != nil {
		t.Fatalf("Expected nil for absent state, got %+v", state)
	}

	seed := &model.PlayerBidState{
		AuctionID: "auction-1", PlayerID: "player-1",
		BasePrice: 1_000_000, MinBidIncrement: 100_000,
		CurrentBid: 1_200_000, CurrentTeam: "team-a", Open: true,
	}
	if err := s.Set(ctx, seed); err != nil {
		t.Fatalf("Set: %v", err)
	}

	state, err = s.Get(ctx, "auction-1", "player-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.CurrentBid != 1_200_000 || state.CurrentTeam != "team-a" || !state.Open {
		t.Errorf("Unexpected state: %+v", state)
	}

	if err := s.Clear(ctx, "auction-1", "player-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	state, _ = s.Get(ctx, "auction-1", "player-1")
	if state != nil {
		t.Errorf("Expected nil after Clear, got %+v", state)
	}

	// Clearing an absent key is a no-op.
	if err := s.Clear(ctx, "auction-1", "player-1"); err != nil {
		t.Errorf("Clear on absent key: %v", err)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seed := &model.PlayerBidState{AuctionID: "auction-1", PlayerID: "player-1", CurrentBid: 100, Open: true}
	if err := s.Set(ctx, seed); err != nil {
		t.Fatalf("Set: %v", err)
	}
	seed.CurrentBid = 999

	state, _ := s.Get(ctx, "auction-1", "player-1")
	if state.CurrentBid != 100 {
		t.Errorf("Stored state aliased the caller's value: %d", state.CurrentBid)
	}

	state.CurrentBid = 555
	again, _ := s.Get(ctx, "auction-1", "player-1")
	if again.CurrentBid != 100 {
		t.Errorf("Returned state aliased the stored value: %d", again.CurrentBid)
	}
}
