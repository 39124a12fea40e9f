package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// AdminKeyHeader is the API key header for admin lifecycle operations.
const AdminKeyHeader = "X-Admin-Key"

// AdminAuthConfig holds admin authentication configuration
type AdminAuthConfig struct {
	Enabled bool
	APIKey  string
}

// DefaultAdminAuthConfig returns config from the environment. Auth is
// disabled only when no key is configured.
func DefaultAdminAuthConfig() *AdminAuthConfig {
	key := os.Getenv("ADMIN_API_KEY")
	return &AdminAuthConfig{
		Enabled: key != "",
		APIKey:  key,
	}
}

// AdminAuth guards the lifecycle endpoints: sale finalization, unsold,
// send-player and auction status transitions.
type AdminAuth struct {
	config *AdminAuthConfig
	mu     sync.RWMutex
}

// NewAdminAuth creates the middleware
func NewAdminAuth(config *AdminAuthConfig) *AdminAuth {
	if config == nil {
		config = DefaultAdminAuthConfig()
	}
	return &AdminAuth{config: config}
}

// Middleware returns the admin authentication middleware handler
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		enabled := a.config.Enabled
		apiKey := a.config.APIKey
		a.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			log.Warn().Str("path", r.URL.Path).Msg("admin auth failed")
			http.Error(w, `{"error":"invalid admin API key","kind":"unauthorized"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
