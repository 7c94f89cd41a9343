package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"knowmystatus/internal/config"
	"knowmystatus/internal/logging"
	"knowmystatus/internal/queue"
	"knowmystatus/internal/scanlog"
	"knowmystatus/internal/store"
	"knowmystatus/internal/teacher"
)

// Worker drains the scan log queue into Postgres.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env).Named("worker")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis, the API drains the in-memory queue itself",
			zap.String("queue_backend", cfg.QueueBackend))
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, logger); err != nil {
			logger.Fatal("migrate failed", zap.Error(err))
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	repo := teacher.NewPostgresRepository(db.Client)

	if err := scanlog.NewConsumer(q, repo, logger).Run(ctx); err != nil {
		logger.Fatal("queue consume failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
