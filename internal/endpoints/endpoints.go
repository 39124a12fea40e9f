// Package endpoints provides the admin and query HTTP handlers around
// the bid pipeline.
package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/teamdraft/auctiond/internal/lifecycle"
	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/internal/store"
	"github.com/teamdraft/auctiond/pkg/logger"
)

// SellHandler handles POST /v1/auctions/{auctionID}/players/{playerID}/sell
type SellHandler struct {
	manager *lifecycle.Manager
}

// NewSellHandler creates a sale finalization handler.
func NewSellHandler(m *lifecycle.Manager) *SellHandler {
	return &SellHandler{manager: m}
}

// sellRequest is the admin sale finalization body.
type sellRequest struct {
	TeamID string `json:"teamId"`
	Amount int64  `json:"amount"`
}

// ServeHTTP finalizes a sale.
func (h *SellHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	playerID := r.PathValue("playerID")

	defer r.Body.Close()
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewError(model.KindInvalidRequest, "invalid JSON in request body"))
		return
	}
	if req.TeamID == "" {
		writeError(w, model.NewError(model.KindInvalidRequest, "teamId: required"))
		return
	}
	if req.Amount <= 0 {
		writeError(w, model.NewError(model.KindInvalidRequest, "amount: must be positive"))
		return
	}

	if err := h.manager.FinalizeSale(r.Context(), auctionID, playerID, req.TeamID, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sold"})
}

// UnsoldHandler handles POST /v1/auctions/{auctionID}/players/{playerID}/unsold
type UnsoldHandler struct {
	manager *lifecycle.Manager
}

// NewUnsoldHandler creates a mark-unsold handler.
func NewUnsoldHandler(m *lifecycle.Manager) *UnsoldHandler {
	return &UnsoldHandler{manager: m}
}

// ServeHTTP marks a player unsold.
func (h *UnsoldHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	playerID := r.PathValue("playerID")

	if err := h.manager.MarkUnsold(r.Context(), auctionID, playerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsold"})
}

// SendPlayerHandler handles POST /v1/auctions/{auctionID}/players/{playerID}/send
type SendPlayerHandler struct {
	manager *lifecycle.Manager
}

// NewSendPlayerHandler creates a handler that opens a bidding window.
func NewSendPlayerHandler(m *lifecycle.Manager) *SendPlayerHandler {
	return &SendPlayerHandler{manager: m}
}

// ServeHTTP opens the bidding window for a player.
func (h *SendPlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	playerID := r.PathValue("playerID")

	state, err := h.manager.SendPlayer(r.Context(), auctionID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// AuctionStatusHandler handles POST /v1/auctions/{auctionID}/status
type AuctionStatusHandler struct {
	manager *lifecycle.Manager
}

// NewAuctionStatusHandler creates an auction status transition handler.
func NewAuctionStatusHandler(m *lifecycle.Manager) *AuctionStatusHandler {
	return &AuctionStatusHandler{manager: m}
}

// statusRequest is the admin auction transition body.
type statusRequest struct {
	Status model.AuctionStatus `json:"status"`
}

// ServeHTTP applies an auction status transition.
func (h *AuctionStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")

	defer r.Body.Close()
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewError(model.KindInvalidRequest, "invalid JSON in request body"))
		return
	}
	switch req.Status {
	case model.AuctionActive, model.AuctionCompleted, model.AuctionCancelled:
	default:
		writeError(w, model.NewError(model.KindInvalidRequest, "status: must be active, completed or cancelled"))
		return
	}

	if err := h.manager.TransitionAuction(r.Context(), auctionID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// BidStateHandler handles GET /v1/auctions/{auctionID}/players/{playerID}/bid-state
//
// This is the pull path for reconnecting watchers: broadcast delivery is
// best-effort, the state store is authoritative.
type BidStateHandler struct {
	store store.BidStateStore
}

// NewBidStateHandler creates a bid state query handler.
func NewBidStateHandler(s store.BidStateStore) *BidStateHandler {
	return &BidStateHandler{store: s}
}

// ServeHTTP returns the current bid state for a player.
func (h *BidStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	playerID := r.PathValue("playerID")

	state, err := h.store.Get(r.Context(), auctionID, playerID)
	if err != nil {
		log := logger.HTTP()
		log.Error().Err(err).Msg("bid state query failed")
		writeError(w, err)
		return
	}
	if state == nil {
		writeError(w, model.NewError(model.KindNotFound, "no bidding window for player"))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// StatusHandler handles /status requests
type StatusHandler struct{}

// NewStatusHandler creates a new status handler
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

// ServeHTTP handles status requests
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a classified error response
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	writeJSON(w, statusForKind(kind), map[string]string{
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
	case model.KindAuctionNotActive, model.KindAlreadySold, model.KindAlreadyUnsold,
		model.KindInsufficientBudget, model.KindStaleBid:
		return http.StatusConflict
	case model.KindQueueUnavailable, model.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
