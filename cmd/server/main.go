// Package main is the entry point for the auction server
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/teamdraft/auctiond/internal/broadcast"
	"github.com/teamdraft/auctiond/internal/endpoints"
	"github.com/teamdraft/auctiond/internal/gateway"
	"github.com/teamdraft/auctiond/internal/ledger"
	"github.com/teamdraft/auctiond/internal/lifecycle"
	"github.com/teamdraft/auctiond/internal/metrics"
	"github.com/teamdraft/auctiond/internal/middleware"
	"github.com/teamdraft/auctiond/internal/processor"
	"github.com/teamdraft/auctiond/internal/queue"
	"github.com/teamdraft/auctiond/internal/store"
	"github.com/teamdraft/auctiond/pkg/identity"
	"github.com/teamdraft/auctiond/pkg/logger"
)

func main() {
	// .env values fill in unset environment variables, never override
	_ = godotenv.Load()

	port := flag.String("port", getEnv("PORT", "8000"), "Server port")
	redisURL := flag.String("redis-url", os.Getenv("REDIS_URL"), "Redis URL (empty: in-memory state and queue, single node only)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN for the ledger (empty: in-memory ledger)")
	identityURL := flag.String("identity-url", os.Getenv("IDENTITY_URL"), "Identity service URL (empty: authorization checks disabled)")
	inlineFallback := flag.Bool("inline-fallback", os.Getenv("INLINE_FALLBACK") == "true", "Process bids in-process when the queue is unreachable")
	flag.Parse()

	logger.Init(logger.DefaultConfig())
	log := logger.Log

	m := metrics.NewMetrics("auctiond")
	hub := broadcast.NewHub(m)
	teamAuth := middleware.NewTeamAuth(nil)

	var (
		bidStore store.BidStateStore
		bidQueue queue.Queue
	)
	if *redisURL != "" {
		opts, err := redis.ParseURL(*redisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()

		redisStore := store.NewRedisStore(client, "auctiond")
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("redis connection test failed")
		} else {
			log.Info().Str("address", opts.Addr).Msg("redis connected")
		}
		cancel()

		bidStore = redisStore
		bidQueue = queue.NewRedisStreamQueue(client, queue.RedisStreamConfig{})
		teamAuth.SetRedisClient(redisHGet{client})
	} else {
		log.Warn().Msg("no redis URL, using in-memory state and queue (single node only)")
		bidStore = store.NewMemoryStore()
		bidQueue = queue.NewMemoryQueue(0)
	}

	var led ledger.Ledger
	if *postgresDSN != "" {
		gormLedger, err := ledger.Open(*postgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("ledger connection failed")
		}
		led = gormLedger
		log.Info().Msg("ledger connected")
	} else {
		log.Warn().Msg("no postgres DSN, using in-memory ledger (data is lost on restart)")
		led = ledger.NewMemoryLedger()
	}

	var authorizer gateway.Authorizer
	if *identityURL != "" {
		authorizer = identity.NewClient(*identityURL, 250*time.Millisecond)
		log.Info().Str("url", *identityURL).Msg("identity service configured")
	} else {
		log.Warn().Msg("no identity URL, team authorization checks disabled")
	}

	proc := processor.New(bidQueue, bidStore, led, hub, m)
	manager := lifecycle.New(led, bidStore, hub, m)

	var fallback gateway.InlineProcessor
	if *inlineFallback {
		fallback = proc
	}
	bidHandler := gateway.NewHandler(bidQueue, led, authorizer, fallback, m)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/bids", bidHandler)
	mux.Handle("GET /v1/auctions/{auctionID}/players/{playerID}/bid-state", endpoints.NewBidStateHandler(bidStore))
	mux.Handle("GET /ws", hub)
	mux.Handle("GET /status", endpoints.NewStatusHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	adminMux := http.NewServeMux()
	adminMux.Handle("POST /v1/auctions/{auctionID}/status", endpoints.NewAuctionStatusHandler(manager))
	adminMux.Handle("POST /v1/auctions/{auctionID}/players/{playerID}/send", endpoints.NewSendPlayerHandler(manager))
	adminMux.Handle("POST /v1/auctions/{auctionID}/players/{playerID}/sell", endpoints.NewSellHandler(manager))
	adminMux.Handle("POST /v1/auctions/{auctionID}/players/{playerID}/unsold", endpoints.NewUnsoldHandler(manager))
	adminAuth := middleware.NewAdminAuth(nil)
	mux.Handle("/v1/auctions/", adminAuth.Middleware(adminMux))

	cors := middleware.NewCORS(nil)
	sizeLimiter := middleware.NewSizeLimiter(nil)
	handler := m.Middleware(cors.Middleware(sizeLimiter.Middleware(teamAuth.Middleware(loggingMiddleware(mux)))))

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	procCtx, stopProcessor := context.WithCancel(context.Background())
	go func() {
		if err := proc.Run(procCtx); err != nil && procCtx.Err() == nil {
			log.Error().Err(err).Msg("bid processor exited")
		}
	}()

	go func() {
		log.Info().Str("port", *port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// redisHGet adapts go-redis to the middleware's lookup interface
type redisHGet struct {
	client *redis.Client
}

func (r redisHGet) HGet(ctx context.Context, key, field string) (string, error) {
	return r.client.HGet(ctx, key, field).Result()
}

// loggingMiddleware assigns each request an ID and logs it
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		next.ServeHTTP(w, r)
		log := logger.HTTP()
		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// getEnv returns environment variable or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
