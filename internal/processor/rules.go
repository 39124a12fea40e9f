// Package processor drains the ordering queue and applies the bid
// acceptance rules against the shared state, one bid at a time.
package processor

import (
	"time"

	"github.com/teamdraft/auctiond/internal/model"
)

// Outcome classifies the result of applying one bid.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeAlreadyApplied
	OutcomeWindowClosed
	OutcomeTooLow
	OutcomeRepeatBidder
	OutcomeOverBudget
)

// String returns the metric/log label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeAlreadyApplied:
		return "already_applied"
	case OutcomeWindowClosed:
		return "window_closed"
	case OutcomeTooLow:
		return "too_low"
	case OutcomeRepeatBidder:
		return "repeat_bidder"
	case OutcomeOverBudget:
		return "over_budget"
	}
	return "unknown"
}

// Accepted reports whether the bid advanced the state.
func (o Outcome) Accepted() bool { return o == OutcomeAccepted }

// Apply is the pure transition function for one bid against one player's
// bid state. It never mutates its inputs; the returned state is only
// meaningful when the outcome is OutcomeAccepted.
//
// Rule order matters: the already-applied check runs before the
// repeat-bidder rule so that a redelivered bid from the current leader is
// a no-op instead of a spurious rejection.
func Apply(state *model.PlayerBidState, bid model.Bid, remainingBudget int64) (model.PlayerBidState, Outcome) {
	if state == nil || !state.Open {
		return model.PlayerBidState{}, OutcomeWindowClosed
	}

	if state.HasBid() && bid.TeamID == state.CurrentTeam && bid.Amount == state.CurrentBid {
		return *state, OutcomeAlreadyApplied
	}

	// Opening bid must meet the base price; later bids must clear the
	// current bid by the auction's minimum increment.
	if state.HasBid() {
		if bid.Amount < state.CurrentBid+state.MinBidIncrement {
			return *state, OutcomeTooLow
		}
	} else if bid.Amount < state.BasePrice {
		return *state, OutcomeTooLow
	}

	if state.HasBid() && bid.TeamID == state.CurrentTeam {
		return *state, OutcomeRepeatBidder
	}

	if bid.Amount > remainingBudget {
		return *state, OutcomeOverBudget
	}

	next := *state
	next.CurrentBid = bid.Amount
	next.CurrentTeam = bid.TeamID
	next.UpdatedAt = time.Now()
	return next, OutcomeAccepted
}
