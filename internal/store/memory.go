package store

import (
	"context"
	"sync"

	"github.com/teamdraft/auctiond/internal/model"
)

// MemoryStore is an in-process BidStateStore for tests and single-node
// development. Values are copied on the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]model.PlayerBidState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]model.PlayerBidState)}
}

func memKey(auctionID, playerID string) string {
	return auctionID + "/" + playerID
}

// Get loads the bid state, or (nil, nil) when absent.
func (s *MemoryStore) Get(_ context.Context, auctionID, playerID string) (*model.PlayerBidState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[memKey(auctionID, playerID)]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

// Set stores a copy of the bid state.
func (s *MemoryStore) Set(_ context.Context, state *model.PlayerBidState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[memKey(state.AuctionID, state.PlayerID)] = *state
	return nil
}

// Clear removes the bid state.
func (s *MemoryStore) Clear(_ context.Context, auctionID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, memKey(auctionID, playerID))
	return nil
}
