// Package middleware provides HTTP middleware for the auction server
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SubmitterHeader carries the authenticated submitter identity to the
// bid gateway. Inbound values are stripped; only this middleware sets it.
const SubmitterHeader = "X-Submitter"

// TeamKeyHeader is the API key header for team representatives.
const TeamKeyHeader = "X-Team-Key"

// RedisTeamKeysHash is the Redis hash of api_key -> submitter identity.
const RedisTeamKeysHash = "auctiond:teamkeys"

// RedisClient is the slice of Redis the middleware needs for runtime key
// lookups.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) (string, error)
}

// TeamAuthConfig holds team representative authentication configuration
type TeamAuthConfig struct {
	Enabled         bool
	Keys            map[string]string // api key -> submitter identity
	UseRedis        bool              // also consult the Redis key hash
	BypassPaths     []string          // paths that don't require a team key
	RateLimitPerRep int               // requests per second per submitter (0 = unlimited)
}

// DefaultTeamAuthConfig returns config from the environment
func DefaultTeamAuthConfig() *TeamAuthConfig {
	return &TeamAuthConfig{
		Enabled:         os.Getenv("TEAM_AUTH_ENABLED") != "false",
		Keys:            parseTeamKeys(os.Getenv("TEAM_KEYS")),
		UseRedis:        os.Getenv("TEAM_AUTH_USE_REDIS") == "true",
		// Team keys guard bid submission; admin routes carry their own
		// key and the read paths are public.
		BypassPaths:     []string{"/status", "/metrics", "/ws", "/v1/auctions"},
		RateLimitPerRep: 20,
	}
}

// parseTeamKeys parses "key1:rep1,key2:rep2" format
func parseTeamKeys(envValue string) map[string]string {
	keys := make(map[string]string)
	if envValue == "" {
		return keys
	}

	pairs := strings.Split(envValue, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return keys
}

// TeamAuth authenticates team representatives on the bid submission path
// and rate-limits them. Authorization for a specific team stays with the
// identity service; this only establishes who is calling.
type TeamAuth struct {
	config      *TeamAuthConfig
	redisClient RedisClient
	mu          sync.RWMutex

	rateLimits   map[string]*rateLimitEntry
	rateLimitsMu sync.Mutex
}

type rateLimitEntry struct {
	tokens    float64
	lastCheck time.Time
}

// NewTeamAuth creates the middleware
func NewTeamAuth(config *TeamAuthConfig) *TeamAuth {
	if config == nil {
		config = DefaultTeamAuthConfig()
	}
	return &TeamAuth{
		config:     config,
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

// SetRedisClient sets the Redis client for runtime key lookups
func (a *TeamAuth) SetRedisClient(client RedisClient) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.redisClient = client
}

// RegisterKey adds an API key at runtime
func (a *TeamAuth) RegisterKey(apiKey, submitter string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Keys[apiKey] = submitter
}

// Middleware returns the authentication middleware handler
func (a *TeamAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never trust an inbound submitter header.
		r.Header.Del(SubmitterHeader)

		a.mu.RLock()
		enabled := a.config.Enabled
		bypassPaths := a.config.BypassPaths
		a.mu.RUnlock()

		if !enabled || a.isBypassed(r.URL.Path, bypassPaths) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(TeamKeyHeader)
		if apiKey == "" {
			http.Error(w, `{"error":"missing team API key","kind":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		submitter, ok := a.lookupKey(r.Context(), apiKey)
		if !ok {
			log.Warn().Str("path", r.URL.Path).Msg("unknown team API key")
			http.Error(w, `{"error":"invalid team API key","kind":"unauthorized"}`, http.StatusForbidden)
			return
		}

		if !a.checkRateLimit(submitter) {
			log.Warn().Str("submitter", submitter).Msg("submitter rate limit exceeded")
			http.Error(w, `{"error":"rate limit exceeded","kind":"invalid_request"}`, http.StatusTooManyRequests)
			return
		}

		r.Header.Set(SubmitterHeader, submitter)
		next.ServeHTTP(w, r)
	})
}

func (a *TeamAuth) isBypassed(path string, bypassPaths []string) bool {
	for _, bypass := range bypassPaths {
		if path == bypass || strings.HasPrefix(path, bypass+"/") {
			return true
		}
	}
	return false
}

// lookupKey resolves an API key to a submitter identity, consulting the
// local map with constant-time comparison and then Redis if configured.
func (a *TeamAuth) lookupKey(ctx context.Context, apiKey string) (string, bool) {
	a.mu.RLock()
	keys := a.config.Keys
	useRedis := a.config.UseRedis
	redisClient := a.redisClient
	a.mu.RUnlock()

	for key, submitter := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return submitter, true
		}
	}

	if useRedis && redisClient != nil {
		submitter, err := redisClient.HGet(ctx, RedisTeamKeysHash, apiKey)
		if err == nil && submitter != "" {
			return submitter, true
		}
	}
	return "", false
}

// checkRateLimit implements token bucket rate limiting per submitter
func (a *TeamAuth) checkRateLimit(submitter string) bool {
	a.mu.RLock()
	rateLimit := a.config.RateLimitPerRep
	a.mu.RUnlock()

	if rateLimit <= 0 {
		return true
	}

	a.rateLimitsMu.Lock()
	defer a.rateLimitsMu.Unlock()

	entry, exists := a.rateLimits[submitter]
	now := time.Now()

	if !exists {
		a.rateLimits[submitter] = &rateLimitEntry{
			tokens:    float64(rateLimit) - 1,
			lastCheck: now,
		}
		return true
	}

	elapsed := now.Sub(entry.lastCheck).Seconds()
	entry.tokens += elapsed * float64(rateLimit)
	if entry.tokens > float64(rateLimit) {
		entry.tokens = float64(rateLimit)
	}
	entry.lastCheck = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true
	}
	return false
}
