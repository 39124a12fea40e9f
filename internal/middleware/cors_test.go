package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSAllowAll(t *testing.T) {
	cors := NewCORS(&CORSConfig{
		Enabled:        true,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", TeamKeyHeader},
		MaxAge:         86400,
	})
	handler := cors.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://auction.example.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://auction.example.com" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	cors := NewCORS(&CORSConfig{
		Enabled:        true,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", TeamKeyHeader, AdminKeyHeader},
		MaxAge:         86400,
	})
	handler := cors.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/bids", nil)
	req.Header.Set("Origin", "https://auction.example.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Expected allowed methods on preflight")
	}
	if got := resp.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Expected max age 86400, got %q", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"empty list allows all", "https://anything.com", nil, true},
		{"exact match", "https://ui.example.com", []string{"https://ui.example.com"}, true},
		{"no match", "https://evil.com", []string{"https://ui.example.com"}, false},
		{"star", "https://anything.com", []string{"*"}, true},
		{"wildcard subdomain", "https://app.example.com", []string{"*.example.com"}, true},
		{"wildcard non-match", "https://example.org", []string{"*.example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originAllowed(tt.origin, tt.allowed); got != tt.want {
				t.Errorf("originAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestCORSDisallowedOriginGetsNoHeader(t *testing.T) {
	cors := NewCORS(&CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://ui.example.com"},
		AllowedMethods: []string{"GET"},
	})
	handler := cors.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://evil.com")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header, got %q", got)
	}
}
