package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamdraft/auctiond/internal/ledger"
	"github.com/teamdraft/auctiond/internal/model"
	"github.com/teamdraft/auctiond/internal/queue"
)

type allowAuthorizer struct {
	denyTeams map[string]bool
	err       error
}

func (a *allowAuthorizer) Authorize(_ context.Context, _, teamID string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return !a.denyTeams[teamID], nil
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, model.Bid) error {
	return model.NewError(model.KindQueueUnavailable, "stream unavailable")
}

func (failingQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type inlineCapture struct {
	bids []model.Bid
	err  error
}

func (p *inlineCapture) Process(_ context.Context, bid model.Bid) error {
	if p.err != nil {
		return p.err
	}
	p.bids = append(p.bids, bid)
	return nil
}

func activeLedger() *ledger.MemoryLedger {
	led := ledger.NewMemoryLedger()
	led.PutAuction(model.Auction{ID: "auction-1", Status: model.AuctionActive, MinBidIncrement: 100_000})
	return led
}

func submit(t *testing.T, handler http.Handler, body, submitter string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/bids", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if submitter != "" {
		req.Header.Set("X-Submitter", submitter)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

const validBody = `{"auctionId":"auction-1","playerId":"player-1","teamId":"team-a","amount":1200000}`

func TestSubmitBidQueued(t *testing.T) {
	bidQueue := queue.NewMemoryQueue(4)
	handler := NewHandler(bidQueue, activeLedger(), &allowAuthorizer{}, nil, nil)

	resp := submit(t, handler, validBody, "rep-1")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var ack struct {
		Status string `json:"status"`
		BidID  string `json:"bidId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if ack.Status != "queued" || ack.BidID == "" {
		t.Errorf("Unexpected ack: %+v", ack)
	}

	received := make(chan model.Bid, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = bidQueue.Consume(ctx, func(_ context.Context, bid model.Bid) error {
			received <- bid
			cancel()
			return nil
		})
	}()
	bid := <-received
	if bid.ID != ack.BidID {
		t.Errorf("Queued bid ID %s does not match ack %s", bid.ID, ack.BidID)
	}
	if bid.TeamID != "team-a" || bid.Amount != 1_200_000 {
		t.Errorf("Unexpected queued bid: %+v", bid)
	}
	if bid.SubmittedAt.IsZero() {
		t.Error("Expected bid to be stamped with a submission time")
	}
}

func TestSubmitBidValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing auction", `{"playerId":"player-1","teamId":"team-a","amount":100}`},
		{"missing player", `{"auctionId":"auction-1","teamId":"team-a","amount":100}`},
		{"missing team", `{"auctionId":"auction-1","playerId":"player-1","amount":100}`},
		{"zero amount", `{"auctionId":"auction-1","playerId":"player-1","teamId":"team-a","amount":0}`},
		{"negative amount", `{"auctionId":"auction-1","playerId":"player-1","teamId":"team-a","amount":-5}`},
	}

	handler := NewHandler(queue.NewMemoryQueue(4), activeLedger(), &allowAuthorizer{}, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := submit(t, handler, tt.body, "rep-1")
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestSubmitBidAuthorization(t *testing.T) {
	t.Run("missing submitter", func(t *testing.T) {
		handler := NewHandler(queue.NewMemoryQueue(4), activeLedger(), &allowAuthorizer{}, nil, nil)
		resp := submit(t, handler, validBody, "")
		if resp.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", resp.Code)
		}
	})

	t.Run("team not covered", func(t *testing.T) {
		authorizer := &allowAuthorizer{denyTeams: map[string]bool{"team-a": true}}
		handler := NewHandler(queue.NewMemoryQueue(4), activeLedger(), authorizer, nil, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", resp.Code)
		}
	})

	t.Run("identity service down fails closed", func(t *testing.T) {
		authorizer := &allowAuthorizer{err: model.NewError(model.KindUnauthorized, "identity unreachable")}
		handler := NewHandler(queue.NewMemoryQueue(4), activeLedger(), authorizer, nil, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", resp.Code)
		}
	})
}

func TestSubmitBidAuctionChecks(t *testing.T) {
	t.Run("unknown auction", func(t *testing.T) {
		handler := NewHandler(queue.NewMemoryQueue(4), ledger.NewMemoryLedger(), &allowAuthorizer{}, nil, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.Code)
		}
	})

	t.Run("auction not active", func(t *testing.T) {
		led := ledger.NewMemoryLedger()
		led.PutAuction(model.Auction{ID: "auction-1", Status: model.AuctionPending})
		handler := NewHandler(queue.NewMemoryQueue(4), led, &allowAuthorizer{}, nil, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", resp.Code)
		}
	})
}

func TestSubmitBidQueueOutage(t *testing.T) {
	t.Run("no fallback returns 503", func(t *testing.T) {
		handler := NewHandler(failingQueue{}, activeLedger(), &allowAuthorizer{}, nil, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d: %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("inline fallback keeps accepting", func(t *testing.T) {
		inline := &inlineCapture{}
		handler := NewHandler(failingQueue{}, activeLedger(), &allowAuthorizer{}, inline, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", resp.Code, resp.Body.String())
		}
		if len(inline.bids) != 1 || inline.bids[0].TeamID != "team-a" {
			t.Errorf("Expected one inline-processed bid, got %v", inline.bids)
		}
	})

	t.Run("fallback failure returns 503", func(t *testing.T) {
		inline := &inlineCapture{err: model.NewError(model.KindStoreUnavailable, "state store unreachable")}
		handler := NewHandler(failingQueue{}, activeLedger(), &allowAuthorizer{}, inline, nil)
		resp := submit(t, handler, validBody, "rep-1")
		if resp.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.Code)
		}
	})
}

func TestSubmitBidMethodNotAllowed(t *testing.T) {
	handler := NewHandler(queue.NewMemoryQueue(4), activeLedger(), &allowAuthorizer{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/bids", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.Code)
	}
}
