package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytesecuritas/sensi-back/internal/cache"
	"github.com/bytesecuritas/sensi-back/internal/config"
	"github.com/bytesecuritas/sensi-back/internal/log"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/queue"
	"github.com/bytesecuritas/sensi-back/internal/storage"
	"github.com/bytesecuritas/sensi-back/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var objects tasks.ObjectSweeper
	if cfg.Storage.AccessKey != "" {
		store, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		objects = store
	} else {
		logger.Warn().Msg("storage credentials missing; object store sweep disabled")
	}

	processor := tasks.NewProcessor(logger, cfg.Jobs.TempDir, cfg.Jobs.TempMaxAge, objects, metrics.New())
	consumer := queue.NewConsumer(client, cfg.Worker, logger, processor)

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
