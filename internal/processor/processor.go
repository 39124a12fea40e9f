package processor

import (
	"context"
	"time"

	"github.com/teamdraft/auctiond/internal/events"
	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/internal/queue"
	"github.com/teamdraft/auctiond/internal/store"
	"github.com/teamdraft/auctiond/pkg/logger"
)

// BudgetReader is the slice of the ledger the processor needs: the
// bidding team's remaining budget at processing time.
type BudgetReader interface {
	GetTeamBudget(ctx context.Context, auctionID, teamID string) (*model.TeamBudget, error)
}

// Broadcaster fans accepted-bid events out to auction watchers. It must
// never block; delivery is best-effort.
type Broadcaster interface {
	Broadcast(auctionID string, event events.Envelope)
}

// Recorder receives processing metrics. Implemented by metrics.Metrics.
type Recorder interface {
	RecordBidOutcome(outcome string, latency time.Duration)
	RecordStoreError()
}

// Processor is the single logical consumer of the ordering queue. Because
// exactly one Processor advances the queue, acceptance decisions are
// linearizable without locking the state store.
type Processor struct {
	queue    queue.Queue
	store    store.BidStateStore
	budgets  BudgetReader
	hub      Broadcaster
	recorder Recorder
}

// New creates a processor. hub and recorder may be nil.
func New(q queue.Queue, s store.BidStateStore, budgets BudgetReader, hub Broadcaster, recorder Recorder) *Processor {
	return &Processor{
		queue:    q,
		store:    s,
		budgets:  budgets,
		hub:      hub,
		recorder: recorder,
	}
}

// Run consumes the queue until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.Processor()
	log.Info().Msg("bid processor started")
	err := p.queue.Consume(ctx, p.Process)
	log.Info().Err(err).Msg("bid processor stopped")
	return err
}

// Process applies one dequeued bid. Business rejections are logged and
// dropped (the submitter learns the truth from the next broadcast); only
// infrastructure failures return an error, which leaves the message
// unacknowledged for redelivery.
func (p *Processor) Process(ctx context.Context, bid model.Bid) error {
	start := time.Now()
	log := logger.Processor().With().
		Str("bid_id", bid.ID).
		Str("auction_id", bid.AuctionID).
		Str("player_id", bid.PlayerID).
		Str("team_id", bid.TeamID).
		Int64("amount", bid.Amount).
		Logger()

	state, err := p.store.Get(ctx, bid.AuctionID, bid.PlayerID)
	if err != nil {
		log.Error().Err(err).Msg("bid state unavailable, leaving bid pending")
		p.recordStoreError()
		return err
	}

	remainingBudget := int64(0)
	if state != nil && state.Open {
		budget, err := p.budgets.GetTeamBudget(ctx, bid.AuctionID, bid.TeamID)
		switch {
		case model.IsKind(err, model.KindNotFound):
			// Unknown team: the gateway should have stopped this, drop it.
			log.Warn().Msg("bid from team not in auction, dropped")
			p.record(OutcomeWindowClosed, start)
			return nil
		case err != nil:
			log.Error().Err(err).Msg("budget unavailable, leaving bid pending")
			return err
		default:
			remainingBudget = budget.RemainingBudget
		}
	}

	next, outcome := Apply(state, bid, remainingBudget)
	if !outcome.Accepted() {
		if outcome == OutcomeAlreadyApplied {
			log.Debug().Msg("bid already applied, redelivery acked")
		} else {
			log.Info().Str("outcome", outcome.String()).Msg("bid rejected")
		}
		p.record(outcome, start)
		return nil
	}

	if err := p.store.Set(ctx, &next); err != nil {
		log.Error().Err(err).Msg("commit failed, leaving bid pending")
		p.recordStoreError()
		return err
	}

	// The bid is durable once the state store write lands; broadcast is
	// fire-and-forget and never gates the commit.
	if p.hub != nil {
		p.hub.Broadcast(next.AuctionID, events.NewBidUpdated(&next))
	}
	p.record(OutcomeAccepted, start)

	log.Info().
		Int64("current_bid", next.CurrentBid).
		Str("current_team", next.CurrentTeam).
		Msg("bid accepted")
	return nil
}

func (p *Processor) record(outcome Outcome, start time.Time) {
	if p.recorder != nil {
		p.recorder.RecordBidOutcome(outcome.String(), time.Since(start))
	}
}

func (p *Processor) recordStoreError() {
	if p.recorder != nil {
		p.recorder.RecordStoreError()
	}
}
