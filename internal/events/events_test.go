package events

import (
	"encoding/json"
	"testing"

	"github.com/teamdraft/auctiond/internal/model"
)

func TestEnvelopeWireShape(t *testing.T) {
	envelope := NewPlayerSold("auction-1", "player-1", "team-b", 1_300_000)

	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type    string     `json:"type"`
		Version int        `json:"version"`
		Data    PlayerSold `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypePlayerSold {
		t.Errorf("Expected type %s, got %s", TypePlayerSold, decoded.Type)
	}
	if decoded.Version != SchemaVersion {
		t.Errorf("Expected version %d, got %d", SchemaVersion, decoded.Version)
	}
	if decoded.Data.TeamID != "team-b" || decoded.Data.Amount != 1_300_000 {
		t.Errorf("Unexpected payload: %+v", decoded.Data)
	}
}

func TestConstructors(t *testing.T) {
	state := &model.PlayerBidState{
		AuctionID: "auction-1", PlayerID: "player-1",
		BasePrice: 1_000_000, MinBidIncrement: 100_000,
		CurrentBid: 1_200_000, CurrentTeam: "team-a", Open: true,
	}

	updated := NewBidUpdated(state)
	if updated.Type != TypeBidUpdated {
		t.Errorf("Expected %s, got %s", TypeBidUpdated, updated.Type)
	}
	var bidPayload BidUpdated
	if err := json.Unmarshal(updated.Data, &bidPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bidPayload.CurrentBid != 1_200_000 || bidPayload.CurrentTeam != "team-a" {
		t.Errorf("Unexpected payload: %+v", bidPayload)
	}

	opened := NewBiddingOpened(state)
	if opened.Type != TypeBiddingOpened {
		t.Errorf("Expected %s, got %s", TypeBiddingOpened, opened.Type)
	}
	var openPayload BiddingOpened
	if err := json.Unmarshal(opened.Data, &openPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if openPayload.BasePrice != 1_000_000 || openPayload.MinBidIncrement != 100_000 {
		t.Errorf("Unexpected payload: %+v", openPayload)
	}

	unsold := NewPlayerUnsold("auction-1", "player-1")
	if unsold.Type != TypePlayerUnsold {
		t.Errorf("Expected %s, got %s", TypePlayerUnsold, unsold.Type)
	}
}
