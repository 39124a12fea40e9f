package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/authorize" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req authorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(authorizeResponse{
			Authorized: req.Subject == "rep-alpha" && req.TeamID == "team-a",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx := context.Background()

	ok, err := client.Authorize(ctx, "rep-alpha", "team-a")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !ok {
		t.Error("Expected authorization for rep-alpha/team-a")
	}

	ok, err = client.Authorize(ctx, "rep-alpha", "team-b")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if ok {
		t.Error("Expected denial for rep-alpha/team-b")
	}
}

func TestAuthorizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ok, err := client.Authorize(context.Background(), "rep-alpha", "team-a")
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if ok {
		t.Error("Errors must fail closed")
	}
}

func TestAuthorizeCircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClientWithCircuitBreaker(server.URL, time.Second, &CircuitBreakerConfig{
		FailureThreshold: 2,
		CooldownPeriod:   time.Minute,
		SuccessThreshold: 1,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.Authorize(ctx, "rep-alpha", "team-a"); err == nil {
			t.Fatalf("call %d: Expected error", i)
		}
	}
	if !client.IsCircuitOpen() {
		t.Fatal("Expected breaker open after repeated failures")
	}

	_, err := client.Authorize(ctx, "rep-alpha", "team-a")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	client = NewClient(down.URL, time.Second)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error for unhealthy service")
	}
}
