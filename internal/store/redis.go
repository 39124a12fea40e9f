package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamdraft/auctiond/internal/model"
)

// RedisStore keeps PlayerBidState in Redis hashes so every gateway and
// processor instance reads the same state.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "auctiond"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) stateKey(auctionID, playerID string) string {
	return s.keyPrefix + ":" + auctionID + ":" + playerID + ":state"
}

// Get loads the bid state for one player, or (nil, nil) when no bidding
// window exists.
func (s *RedisStore) Get(ctx context.Context, auctionID, playerID string) (*model.PlayerBidState, error) {
	fields, err := s.client.HGetAll(ctx, s.stateKey(auctionID, playerID)).Result()
	if err != nil {
		return nil, model.WrapError(model.KindStoreUnavailable, "read bid state", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	state := &model.PlayerBidState{
		AuctionID:   auctionID,
		PlayerID:    playerID,
		CurrentTeam: fields["currentTeam"],
		Open:        fields["open"] == "1",
	}
	state.BasePrice, _ = strconv.ParseInt(fields["basePrice"], 10, 64)
	state.MinBidIncrement, _ = strconv.ParseInt(fields["minBidIncrement"], 10, 64)
	state.CurrentBid, _ = strconv.ParseInt(fields["currentBid"], 10, 64)
	if raw, ok := fields["updatedAt"]; ok {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			state.UpdatedAt = time.UnixMilli(ts)
		}
	}
	return state, nil
}

// Set writes the full bid state for one player.
func (s *RedisStore) Set(ctx context.Context, state *model.PlayerBidState) error {
	open := "0"
	if state.Open {
		open = "1"
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	err := s.client.HSet(ctx, s.stateKey(state.AuctionID, state.PlayerID),
		"basePrice", strconv.FormatInt(state.BasePrice, 10),
		"minBidIncrement", strconv.FormatInt(state.MinBidIncrement, 10),
		"currentBid", strconv.FormatInt(state.CurrentBid, 10),
		"currentTeam", state.CurrentTeam,
		"open", open,
		"updatedAt", strconv.FormatInt(updatedAt.UnixMilli(), 10),
	).Err()
	if err != nil {
		return model.WrapError(model.KindStoreUnavailable, "write bid state", err)
	}
	return nil
}

// Clear removes the bid state, closing the window for good.
func (s *RedisStore) Clear(ctx context.Context, auctionID, playerID string) error {
	if err := s.client.Del(ctx, s.stateKey(auctionID, playerID)).Err(); err != nil {
		return model.WrapError(model.KindStoreUnavailable, "clear bid state", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
