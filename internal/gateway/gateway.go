// Package gateway is the stateless entry point for bid submissions. It
// checks shape and authorization, stamps the bid, and hands it to the
// ordering queue. It never decides whether a bid is winning; that is the
// processor's job, after ordering.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teamdraft/auctiond/internal/ledger"
	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/internal/queue"
	"github.com/teamdraft/auctiond/pkg/logger"
)

// Authorizer confirms a submitter may act for a team. Implemented by
// identity.Client.
type Authorizer interface {
	Authorize(ctx context.Context, subject, teamID string) (bool, error)
}

// InlineProcessor is the degraded path used when the ordering queue is
// unreachable: the rule engine runs in-process, restoring availability
// at the cost of total ordering across gateway instances.
type InlineProcessor interface {
	Process(ctx context.Context, bid model.Bid) error
}

// SubmissionRecorder counts gateway results. Implemented by
// metrics.Metrics.
type SubmissionRecorder interface {
	RecordBidSubmission(result string)
	RecordQueueError()
}

// Handler handles POST /v1/bids.
type Handler struct {
	queue      queue.Queue
	auctions   ledger.Ledger
	authorizer Authorizer
	fallback   InlineProcessor
	recorder   SubmissionRecorder
}

// NewHandler creates a bid gateway handler. authorizer, fallback and
// recorder may be nil; a nil fallback turns queue outages into 503s.
func NewHandler(q queue.Queue, l ledger.Ledger, authorizer Authorizer, fallback InlineProcessor, recorder SubmissionRecorder) *Handler {
	return &Handler{
		queue:      q,
		auctions:   l,
		authorizer: authorizer,
		fallback:   fallback,
		recorder:   recorder,
	}
}

// submitBidRequest is the wire shape for a bid submission.
type submitBidRequest struct {
	AuctionID string `json:"auctionId"`
	PlayerID  string `json:"playerId"`
	TeamID    string `json:"teamId"`
	Amount    int64  `json:"amount"`
}

// submitBidResponse acknowledges queueing only, never a win.
type submitBidResponse struct {
	Status string `json:"status"`
	BidID  string `json:"bidId"`
}

// ServeHTTP handles the bid submission request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewError(model.KindInvalidRequest, "invalid JSON in request body"))
		h.record("invalid")
		return
	}
	if err := validateSubmission(&req); err != nil {
		writeError(w, err)
		h.record("invalid")
		return
	}

	ctx := r.Context()
	log := logger.Gateway().With().
		Str("auction_id", req.AuctionID).
		Str("player_id", req.PlayerID).
		Str("team_id", req.TeamID).
		Logger()

	// Submitter identity is established by the auth middleware; the
	// identity service decides whether it covers the claimed team.
	subject := r.Header.Get("X-Submitter")
	if subject == "" {
		writeError(w, model.NewError(model.KindUnauthorized, "missing submitter identity"))
		h.record("unauthorized")
		return
	}
	if h.authorizer != nil {
		ok, err := h.authorizer.Authorize(ctx, subject, req.TeamID)
		if err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("authorization check failed")
			writeError(w, model.WrapError(model.KindUnauthorized, "authorization unavailable", err))
			h.record("unauthorized")
			return
		}
		if !ok {
			writeError(w, model.NewError(model.KindUnauthorized, "submitter may not bid for team"))
			h.record("unauthorized")
			return
		}
	}

	auction, err := h.auctions.GetAuction(ctx, req.AuctionID)
	if err != nil {
		writeError(w, err)
		h.record("rejected")
		return
	}
	if auction.Status != model.AuctionActive {
		writeError(w, model.NewError(model.KindAuctionNotActive, "auction is not active"))
		h.record("rejected")
		return
	}

	bid := model.Bid{
		ID:          uuid.NewString(),
		AuctionID:   req.AuctionID,
		PlayerID:    req.PlayerID,
		TeamID:      req.TeamID,
		Amount:      req.Amount,
		SubmittedAt: time.Now().UTC(),
	}

	if err := h.queue.Enqueue(ctx, bid); err != nil {
		if h.recorder != nil {
			h.recorder.RecordQueueError()
		}
		if h.fallback == nil {
			log.Error().Err(err).Msg("queue unavailable, bid rejected")
			writeError(w, err)
			h.record("queue_unavailable")
			return
		}
		// Documented degradation: ordering across gateway instances is
		// forfeited while the queue is down, never hidden.
		log.Warn().Err(err).Str("bid_id", bid.ID).Msg("queue unavailable, processing bid in-process")
		if err := h.fallback.Process(ctx, bid); err != nil {
			writeError(w, err)
			h.record("queue_unavailable")
			return
		}
		h.record("queued_degraded")
	} else {
		h.record("queued")
	}

	log.Debug().Str("bid_id", bid.ID).Int64("amount", bid.Amount).Msg("bid queued")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitBidResponse{Status: "queued", BidID: bid.ID})
}

func (h *Handler) record(result string) {
	if h.recorder != nil {
		h.recorder.RecordBidSubmission(result)
	}
}

// validateSubmission checks request shape.
func validateSubmission(req *submitBidRequest) error {
	switch {
	case req.AuctionID == "":
		return model.NewError(model.KindInvalidRequest, "auctionId: required")
	case req.PlayerID == "":
		return model.NewError(model.KindInvalidRequest, "playerId: required")
	case req.TeamID == "":
		return model.NewError(model.KindInvalidRequest, "teamId: required")
	case req.Amount <= 0:
		return model.NewError(model.KindInvalidRequest, "amount: must be positive")
	}
	return nil
}

// writeError writes a classified error response.
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidRequest:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindAuctionNotActive:
		return http.StatusConflict
	case model.KindQueueUnavailable, model.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
