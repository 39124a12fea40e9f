// Package identity provides a client for the external identity and
// authorization service. The service owns the question "may this caller
// act for this team"; this package only asks it.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Cap on response size to protect against a malformed collaborator.
const maxResponseSize = 64 * 1024

// Client communicates with the identity service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewClient creates a new identity client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 250 * time.Millisecond
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
	}
}

// NewClientWithCircuitBreaker creates a client with custom breaker tuning.
func NewClientWithCircuitBreaker(baseURL string, timeout time.Duration, cbConfig *CircuitBreakerConfig) *Client {
	c := NewClient(baseURL, timeout)
	c.circuitBreaker = NewCircuitBreaker(cbConfig)
	return c
}

// authorizeRequest is the request to check team ownership.
type authorizeRequest struct {
	Subject string `json:"subject"`
	TeamID  string `json:"team_id"`
}

// authorizeResponse is the identity service's verdict.
type authorizeResponse struct {
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// Authorize asks whether subject may bid for teamID. Failures fail
// closed: an unreachable identity service means no bid gets in on that
// team's behalf.
func (c *Client) Authorize(ctx context.Context, subject, teamID string) (bool, error) {
	var authorized bool

	err := c.circuitBreaker.Execute(func() error {
		body, err := json.Marshal(authorizeRequest{Subject: subject, TeamID: teamID})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		url := c.baseURL + "/api/authorize"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call identity service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("identity service returned status %d", resp.StatusCode)
		}

		limitedReader := io.LimitReader(resp.Body, maxResponseSize)
		var response authorizeResponse
		if err := json.NewDecoder(limitedReader).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		authorized = response.Authorized
		return nil
	})
	if err != nil {
		return false, err
	}
	return authorized, nil
}

// HealthCheck checks if the identity service is healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// CircuitBreakerStats returns the current breaker statistics.
func (c *Client) CircuitBreakerStats() Stats {
	return c.circuitBreaker.Stats()
}

// IsCircuitOpen reports whether the breaker is open.
func (c *Client) IsCircuitOpen() bool {
	return c.circuitBreaker.IsOpen()
}
