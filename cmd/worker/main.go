package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/cache"
	"eventhub/internal/config"
	"eventhub/internal/database"
	"eventhub/internal/log"
	"eventhub/internal/queue"
	"eventhub/internal/repository"
	"eventhub/internal/storage"
	"eventhub/internal/tasks"
)

func main() {
	cfg, err := config.Load(config.ModeWorker)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	consumerName := cfg.Queue.Consumer
	if consumerName == "" {
		consumerName = "worker-" + uuid.NewString()
	}

	processor := tasks.NewProcessor(repository.NewAccountRepository(dbPool), objectStore, logger)
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:        cfg.Queue.Stream,
		Group:         cfg.Queue.Group,
		Consumer:      consumerName,
		ClaimInterval: cfg.Queue.ClaimInterval,
	}, logger, processor)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	logger.Info().Str("consumer", consumerName).Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
