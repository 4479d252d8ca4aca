package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/adammasjid/ProjectTest/internal/adapter/httpserver"
	"github.com/adammasjid/ProjectTest/internal/adapter/postgres"
	"github.com/adammasjid/ProjectTest/internal/adapter/redis"
	"github.com/adammasjid/ProjectTest/internal/app"
	"github.com/adammasjid/ProjectTest/internal/broadcast"
	"github.com/adammasjid/ProjectTest/internal/cache"
	"github.com/adammasjid/ProjectTest/internal/platform/config"
	"github.com/adammasjid/ProjectTest/internal/platform/logging"
	"github.com/adammasjid/ProjectTest/internal/platform/retry"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupRedis retries the initial connection; redis tends to come up a few
// seconds after the app under docker compose.
func setupRedis(ctx context.Context, cfg *config.Config, clock clockwork.Clock) *goredis.Client {
	var client *goredis.Client

	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis not reachable yet, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	err := retry.DoVoid(ctx, clock, policy, func() error {
		var err error
		client, err = redis.NewClient(ctx, cfg.RedisURL)
		return err
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, cancelSubscriber context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelSubscriber()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	snapshots, err := cache.New(cfg.CacheSize)
	if err != nil {
		slog.Error("Failed to create snapshot cache", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewQuestionRepo(pool)
	registry := broadcast.NewRegistry()
	hub := broadcast.NewHub(repo, snapshots, registry, clock, cfg.PushSendTimeout)

	// Redis is optional: with it, question writes invalidate the snapshot
	// caches of every other instance.
	subscriberCtx, cancelSubscriber := context.WithCancel(context.Background())
	defer cancelSubscriber()

	var publish app.InvalidationPublisher
	if cfg.RedisURL != "" {
		redisClient := setupRedis(subscriberCtx, cfg, clock)
		defer func() { _ = redisClient.Close() }()

		subscriber := redis.NewInvalidationSubscriber(redisClient, snapshots)
		go subscriber.Start(subscriberCtx)

		publish = func(ctx context.Context, questionID int) error {
			return redis.PublishInvalidation(ctx, redisClient, questionID)
		}
	}

	service := app.NewService(repo, snapshots, hub, clock, publish)
	srv := httpserver.NewServer(cfg, service, hub, clock, pool)

	done := runGracefulShutdown(srv, cancelSubscriber)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
