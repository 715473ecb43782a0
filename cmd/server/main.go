package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mtricolici98/bot-wuzzler/internal/api"
	"github.com/mtricolici98/bot-wuzzler/internal/config"
	"github.com/mtricolici98/bot-wuzzler/internal/repository"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
	"github.com/mtricolici98/bot-wuzzler/pkg/database"
	"github.com/mtricolici98/bot-wuzzler/pkg/distributed"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
	"github.com/mtricolici98/bot-wuzzler/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting bot-wuzzler",
		"port", cfg.Port,
		"env", cfg.Env,
		"store", cfg.StoreDriver,
		"matchPolicy", cfg.MatchPolicy,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	repo, redisClient, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open rating store", "store", cfg.StoreDriver, "error", err)
	}
	defer repo.Close()

	logger.Info("Rating store ready", "store", cfg.StoreDriver)

	policy, err := service.ParseMatchPolicy(cfg.MatchPolicy)
	if err != nil {
		logger.Fatal("Invalid match policy", "error", err)
	}

	eloService := service.NewELOService(repo, cfg.EloKFactor)
	historyService := service.NewHistoryService(repo)
	lobbyService := service.NewLobbyService(eloService, service.NewTeamBalancer(), policy)

	wsHub := websocket.NewHub(cfg.CORSAllowedOrigins)
	go wsHub.Run(ctx)

	deps := api.Dependencies{
		Lobby:    lobbyService,
		ELO:      eloService,
		History:  historyService,
		Hub:      wsHub,
		Notifier: wsHub,
	}

	if redisClient != nil {
		// events and rate limits are shared by every instance
		bus := distributed.NewEventBus(redisClient, cfg.EventsChannel, logger.Named("events"))
		go func() {
			if err := websocket.RelayToHub(ctx, bus, wsHub); err != nil && ctx.Err() == nil {
				logger.Error("Event bus stopped", "error", err)
			}
		}()
		deps.Notifier = websocket.NewBusNotifier(bus)
		deps.Limiter = ratelimit.NewRedisRateLimiter(redisClient, ratelimit.RedisRateLimiterConfig{
			KeyPrefix:  "wuzzler:ratelimit:",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitRefill,
		})
	} else {
		limiter := ratelimit.NewRateLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefill)
		defer limiter.Stop()
		deps.Limiter = limiter
	}

	router := api.SetupRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	stop()

	logger.Info("Server exited")
}

// openStore opens the configured rating store. The Redis client is returned
// too when the store is Redis so events and rate limits can share it.
func openStore(ctx context.Context, cfg *config.Config) (repository.PlayerRepository, redis.UniversalClient, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := database.Connect(database.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLPlayerRepository(db), nil, nil

	case config.StorePostgres:
		db, err := database.Connect(database.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLPlayerRepository(db), nil, nil

	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		lockOpts := distributed.DefaultLockOptions()
		lockOpts.TTL = cfg.LockTTL
		return repository.NewRedisPlayerRepository(client, lockOpts), client, nil
	}

	logger.Warn("Using in-memory rating store; ratings are lost on restart")
	return repository.NewMemoryPlayerRepository(), nil, nil
}
