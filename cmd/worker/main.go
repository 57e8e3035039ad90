package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"ataryouth/internal/cache"
	"ataryouth/internal/config"
	"ataryouth/internal/log"
	"ataryouth/internal/media/imaging"
	"ataryouth/internal/queue"
	"ataryouth/internal/storage"
	"ataryouth/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New("atar-worker", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	if client == nil {
		logger.Fatal().Msg("redis.enabled must be true to run the cleanup worker")
	}
	defer client.Close()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init photo storage")
	}

	processor := tasks.NewProcessor(logger, imaging.NewPipeline(store, logger))
	consumer := queue.NewConsumer(
		client,
		cfg.Cleanup.Stream,
		cfg.Cleanup.Group,
		cfg.Cleanup.Consumer,
		cfg.Cleanup.ClaimInterval,
		logger,
		processor,
	)

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	logger.Info().Str("stream", cfg.Cleanup.Stream).Msg("cleanup worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("cleanup worker stopped")
}
