package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/cache"
	"github.com/bytesecuritas/sensi-back/internal/config"
	"github.com/bytesecuritas/sensi-back/internal/database"
	"github.com/bytesecuritas/sensi-back/internal/handlers"
	"github.com/bytesecuritas/sensi-back/internal/jobs"
	"github.com/bytesecuritas/sensi-back/internal/log"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/repository"
	"github.com/bytesecuritas/sensi-back/internal/security"
	"github.com/bytesecuritas/sensi-back/internal/server"
	"github.com/bytesecuritas/sensi-back/internal/service"
	"github.com/bytesecuritas/sensi-back/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.Migrate {
		applied, err := database.Migrate(ctx, dbPool)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Strs("applied", applied).Msg("migrations up to date")
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

	tokens, err := security.NewTokenIssuer(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		security.WithTTLs(cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token issuer")
	}

	m := metrics.New()
	store := repository.NewStore(dbPool)
	limiter := cache.NewLoginLimiter(redisClient, cfg.Security.LoginAttempts, cfg.Security.LoginWindow)
	engine := authz.NewEngine(store, store, logger)

	handlerSet := handlers.NewHandlerSet(logger, handlers.Dependencies{
		Auth:          service.NewAuthService(store, store, tokens, limiter, m, logger),
		Users:         service.NewUserService(store, logger),
		Organisations: service.NewOrganisationService(store, logger),
		Learning:      service.NewLearningService(store, store, engine, logger),
		Tokens:        tokens,
		Engine:        engine,
		Policies:      authz.DefaultPolicies(),
		Metrics:       m,
		Environment:   cfg.Environment,
		HealthChecks: []handlers.HealthCheck{
			{Name: "database", Ping: dbPool.Ping},
			{Name: "cache", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "storage", Ping: objectStore.Ping},
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, m, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, cfg.Jobs, logger)
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
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
