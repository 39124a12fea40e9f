// Package logger provides structured logging for the auction server
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey ContextKey = "request_id"
	// AuctionIDKey is the context key for auction IDs
	AuctionIDKey ContextKey = "auction_id"
	// BidIDKey is the context key for bid IDs
	BidIDKey ContextKey = "bid_id"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // time format for console output
}

// DefaultConfig returns sensible defaults for production
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global logger
func Init(cfg Config) {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: cfg.TimeFormat,
		}
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "auctiond").
		Logger()
}

// WithRequestID adds a request ID to the logger context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAuctionID adds an auction ID to the logger context
func WithAuctionID(ctx context.Context, auctionID string) context.Context {
	return context.WithValue(ctx, AuctionIDKey, auctionID)
}

// FromContext returns a logger with context values
func FromContext(ctx context.Context) zerolog.Logger {
	l := Log.With()

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.Str("request_id", requestID)
	}

	if auctionID, ok := ctx.Value(AuctionIDKey).(string); ok {
		l = l.Str("auction_id", auctionID)
	}

	if bidID, ok := ctx.Value(BidIDKey).(string); ok {
		l = l.Str("bid_id", bidID)
	}

	return l.Logger()
}

// Auction returns a logger scoped to one auction
func Auction(auctionID string) zerolog.Logger {
	return Log.With().Str("auction_id", auctionID).Logger()
}

// Gateway returns a logger for bid gateway events
func Gateway() zerolog.Logger {
	return Log.With().Str("component", "gateway").Logger()
}

// Processor returns a logger for bid processor events
func Processor() zerolog.Logger {
	return Log.With().Str("component", "processor").Logger()
}

// Queue returns a logger for ordering queue events
func Queue() zerolog.Logger {
	return Log.With().Str("component", "queue").Logger()
}

// Hub returns a logger for broadcast hub events
func Hub() zerolog.Logger {
	return Log.With().Str("component", "hub").Logger()
}

// Lifecycle returns a logger for auction lifecycle events
func Lifecycle() zerolog.Logger {
	return Log.With().Str("component", "lifecycle").Logger()
}

// HTTP returns a logger for HTTP events
func HTTP() zerolog.Logger {
	return Log.With().Str("component", "http").Logger()
}

// getEnv returns environment variable or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
