package identity

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is open and calls are
// short-circuited.
var ErrCircuitOpen = errors.New("identity circuit breaker open")

// CircuitBreakerConfig tunes the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	CooldownPeriod   time.Duration // time open before a half-open probe
	SuccessThreshold int           // half-open successes before closing
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		CooldownPeriod:   10 * time.Second,
		SuccessThreshold: 2,
	}
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards calls to the identity service so a dead
// collaborator fails fast instead of stalling every bid submission.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	openedAt    time.Time
	totalTrips  uint64
	totalCalls  uint64
	totalErrors uint64
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{config: config}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	cb.totalCalls++

	if cb.state == stateOpen {
		if time.Since(cb.openedAt) < cb.config.CooldownPeriod {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = stateHalfOpen
		cb.successes = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.totalErrors++
		cb.failures++
		if cb.state == stateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			if cb.state != stateOpen {
				cb.totalTrips++
			}
			cb.state = stateOpen
			cb.openedAt = time.Now()
		}
		return err
	}

	cb.failures = 0
	if cb.state == stateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = stateClosed
		}
	}
	return nil
}

// IsOpen reports whether calls are currently short-circuited.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen && time.Since(cb.openedAt) < cb.config.CooldownPeriod
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateClosed
	cb.failures = 0
	cb.successes = 0
}

// Stats is a point-in-time snapshot of breaker counters.
type Stats struct {
	State       string
	TotalCalls  uint64
	TotalErrors uint64
	TotalTrips  uint64
}

// Stats returns current breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := "closed"
	switch cb.state {
	case stateOpen:
		state = "open"
	case stateHalfOpen:
		state = "half-open"
	}
	return Stats{
		State:       state,
		TotalCalls:  cb.totalCalls,
		TotalErrors: cb.totalErrors,
		TotalTrips:  cb.totalTrips,
	}
}
