package middleware

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string // Empty means allow all (*)
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // Preflight cache duration in seconds
}

// DefaultCORSConfig returns CORS configuration for browser auction UIs
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		Enabled:        os.Getenv("CORS_ENABLED") != "false",
		AllowedOrigins: parseCommaSeparated(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			TeamKeyHeader,
			AdminKeyHeader,
			"X-Request-ID",
			"Accept",
			"Origin",
		},
		AllowCredentials: os.Getenv("CORS_ALLOW_CREDENTIALS") == "true",
		MaxAge:           86400,
	}
}

// parseCommaSeparated splits a comma-separated string into a slice
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// CORS provides Cross-Origin Resource Sharing middleware
type CORS struct {
	config *CORSConfig
	mu     sync.RWMutex
}

// NewCORS creates a new CORS middleware
func NewCORS(config *CORSConfig) *CORS {
	if config == nil {
		config = DefaultCORSConfig()
	}
	return &CORS{config: config}
}

// Middleware returns the CORS middleware handler
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.RLock()
		enabled := c.config.Enabled
		allowedOrigins := c.config.AllowedOrigins
		allowedMethods := c.config.AllowedMethods
		allowedHeaders := c.config.AllowedHeaders
		allowCredentials := c.config.AllowCredentials
		maxAge := c.config.MaxAge
		c.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if originAllowed(origin, allowedOrigins) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if len(allowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
		}
		w.Header().Add("Vary", "Origin")

		if allowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
			if maxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed checks the origin against the allowed list, supporting
// wildcard subdomains
func originAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			suffix := allowed[1:] // ".example.com"
			if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
