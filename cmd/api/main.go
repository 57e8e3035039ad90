package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ataryouth/internal/cache"
	"ataryouth/internal/config"
	"ataryouth/internal/database"
	"ataryouth/internal/handlers"
	"ataryouth/internal/jobs"
	"ataryouth/internal/log"
	"ataryouth/internal/media/imaging"
	"ataryouth/internal/queue"
	"ataryouth/internal/repository"
	"ataryouth/internal/security"
	"ataryouth/internal/server"
	"ataryouth/internal/service"
	"ataryouth/internal/storage"
	"ataryouth/internal/tasks"
)

func main() {
	seedAdmin := flag.Bool("seed-admin", false, "create the default administrator and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New("atar-api", cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	users := repository.NewUserRepository(dbPool)
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	tokens := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL)

	if *seedAdmin {
		auth := service.NewAuthService(users, hasher, tokens, nil, service.NewPhotoResolver(nil), cfg.Auth, logger)
		created, err := auth.SeedAdmin(ctx, cfg.Seed)
		dbPool.Close()
		if err != nil {
			logger.Fatal().Err(err).Msg("seed admin failed")
		}
		logger.Info().Bool("created", created).Str("email", cfg.Seed.AdminEmail).Msg("admin seed finished")
		return
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init photo storage")
	}
	if err := os.MkdirAll(cfg.Storage.TmpDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Storage.TmpDir).Msg("failed to create upload temp dir")
	}

	pipeline := imaging.NewPipeline(store, logger)
	dispatcher := tasks.NewDispatcher(queue.NewPublisher(redisClient, cfg.Cleanup.Stream), pipeline, logger)
	limiter := cache.NewLoginLimiter(redisClient, cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)
	resolver := service.NewPhotoResolver(store)

	var throttle service.LoginThrottle
	if limiter != nil {
		throttle = limiter
	}

	services := handlers.Services{
		Auth:     service.NewAuthService(users, hasher, tokens, throttle, resolver, cfg.Auth, logger),
		Profiles: service.NewProfileService(users, pipeline, dispatcher, resolver, cfg.HTTP.MaxUploadBytes, logger),
		Admin:    service.NewAdminService(users, repository.NewStatsRepository(dbPool), logger),
	}
	checks := handlers.HealthChecks{
		Database: dbPool.Ping,
		Storage:  store.Ping,
	}
	if redisClient != nil {
		checks.Cache = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, services, checks)
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(cfg.Storage.TmpDir, cfg.Cleanup.TmpMaxAge, cfg.Cleanup.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
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
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
