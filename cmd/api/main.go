package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventhub/internal/cache"
	"eventhub/internal/config"
	"eventhub/internal/database"
	"eventhub/internal/describe"
	"eventhub/internal/handlers"
	"eventhub/internal/jobs"
	"eventhub/internal/log"
	"eventhub/internal/metrics"
	"eventhub/internal/queue"
	"eventhub/internal/repository"
	"eventhub/internal/security"
	"eventhub/internal/server"
	"eventhub/internal/service"
	"eventhub/internal/storage"
)

func main() {
	cfg, err := config.Load(config.ModeAPI)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	metrics.Init()

	ctx := context.Background()

	if cfg.Postgres.AutoMigrate {
		if err := database.MigrateUp(cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate postgres")
		}
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	accounts := repository.NewAccountRepository(dbPool)
	events := repository.NewEventRepository(dbPool)
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost, cfg.Security.HashConcurrency)
	tokens := security.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)
	describer := describe.NewDescriber(describe.NewGenerator(cfg.Describer), cfg.Describer.Timeout, logger)

	authService := service.NewAuthService(accounts, hasher, tokens, logger)
	eventService := service.NewEventService(events, objectStore, describer, producer, service.EventServiceConfig{
		MaxImageBytes: cfg.Events.MaxImageBytes,
		Location:      cfg.Location(),
	}, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Auth:     authService,
		Events:   eventService,
		Tokens:   tokens,
		Accounts: accounts,
		Limiter:  redisClient,
		Images:   objectStore,
		Checks: []handlers.HealthCheck{
			{Name: "postgres", Ping: dbPool.Ping},
			{Name: "redis", Ping: cache.Ping(redisClient)},
			{Name: "storage", Ping: objectStore.Ping},
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, logger)
	if err := scheduler.Start(cfg.Jobs.SessionSweep); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
