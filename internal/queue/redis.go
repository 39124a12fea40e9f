package queue

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/pkg/logger"
)

const (
	defaultStream   = "auctiond:bids"
	defaultGroup    = "bid-processor"
	defaultConsumer = "bid-processor-1"

	readBatch = 16
	readBlock = 5 * time.Second

	backoffMin = 100 * time.Millisecond
	backoffMax = 5 * time.Second
)

// StreamClient is the slice of the Redis API the queue touches.
// *redis.Client satisfies it.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
}

// RedisStreamQueue is the ordering queue backed by a Redis Stream with a
// single-consumer group. One stream, one group, one consumer gives one
// global processing order without any lock.
type RedisStreamQueue struct {
	client   StreamClient
	stream   string
	group    string
	consumer string
}

// RedisStreamConfig holds stream naming; zero values pick the defaults.
type RedisStreamConfig struct {
	Stream   string
	Group    string
	Consumer string
}

// NewRedisStreamQueue creates the queue over an existing Redis client.
func NewRedisStreamQueue(client StreamClient, cfg RedisStreamConfig) *RedisStreamQueue {
	if cfg.Stream == "" {
		cfg.Stream = defaultStream
	}
	if cfg.Group == "" {
		cfg.Group = defaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = defaultConsumer
	}
	return &RedisStreamQueue{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
	}
}

// Enqueue appends the bid to the stream.
func (q *RedisStreamQueue) Enqueue(ctx context.Context, bid model.Bid) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"id":          bid.ID,
			"auctionId":   bid.AuctionID,
			"playerId":    bid.PlayerID,
			"teamId":      bid.TeamID,
			"amount":      strconv.FormatInt(bid.Amount, 10),
			"submittedAt": strconv.FormatInt(bid.SubmittedAt.UnixMilli(), 10),
		},
	}).Err()
	if err != nil {
		return model.WrapError(model.KindQueueUnavailable, "enqueue bid", err)
	}
	return nil
}

// Consume drains the stream in order, acking each bid after the handler
// returns nil. Pending entries left by a crashed consumer are replayed
// before new ones, which is where the processor's idempotence guard earns
// its keep.
func (q *RedisStreamQueue) Consume(ctx context.Context, handler Handler) error {
	log := logger.Queue()

	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	// "0" replays this consumer's pending entries once, then ">" reads
	// only new messages.
	readID := "0"
	backoff := backoffMin

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, readID},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if err == redis.Nil {
			readID = ">"
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Dur("backoff", backoff).Msg("stream read failed, backing off")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		delivered := 0
		redeliver := false
	batch:
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				delivered++
				bid, ok := parseBid(msg)
				if !ok {
					log.Error().Str("message_id", msg.ID).Msg("malformed bid message, acking to skip")
					q.client.XAck(ctx, q.stream, q.group, msg.ID)
					continue
				}
				if err := handler(ctx, bid); err != nil {
					// Leave unacked and abandon the rest of the batch:
					// the next read goes back to the pending list so the
					// failed bid is retried before anything newer.
					log.Warn().Err(err).Str("bid_id", bid.ID).Msg("handler failed, bid left pending")
					redeliver = true
					break batch
				}
				q.client.XAck(ctx, q.stream, q.group, msg.ID)
			}
		}

		if redeliver {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			readID = "0"
			continue
		}
		backoff = backoffMin

		if readID == "0" && delivered == 0 {
			readID = ">"
		}
	}
}

func (q *RedisStreamQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return model.WrapError(model.KindQueueUnavailable, "create consumer group", err)
	}
	return nil
}

func parseBid(msg redis.XMessage) (model.Bid, bool) {
	bid := model.Bid{
		ID:        stringValue(msg.Values, "id"),
		AuctionID: stringValue(msg.Values, "auctionId"),
		PlayerID:  stringValue(msg.Values, "playerId"),
		TeamID:    stringValue(msg.Values, "teamId"),
	}
	if bid.ID == "" || bid.AuctionID == "" || bid.PlayerID == "" || bid.TeamID == "" {
		return model.Bid{}, false
	}

	amount, err := strconv.ParseInt(stringValue(msg.Values, "amount"), 10, 64)
	if err != nil {
		return model.Bid{}, false
	}
	bid.Amount = amount

	if ts, err := strconv.ParseInt(stringValue(msg.Values, "submittedAt"), 10, 64); err == nil {
		bid.SubmittedAt = time.UnixMilli(ts)
	}
	return bid, true
}

func stringValue(values map[string]interface{}, key string) string {
	if s, ok := values[key].(string); ok {
		return s
	}
	return ""
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}
