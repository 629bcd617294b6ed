package main

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"fluxgallery/internal/cache"
	"fluxgallery/internal/config"
	"fluxgallery/internal/database"
	"fluxgallery/internal/events"
	"fluxgallery/internal/imagegen"
	"fluxgallery/internal/log"
	"fluxgallery/internal/queue"
	"fluxgallery/internal/repository"
	"fluxgallery/internal/storage"
	"fluxgallery/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("object store init failed")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure bucket failed")
	}

	images := repository.NewImageRepository(db)
	generator := imagegen.NewClient(cfg.ImageGen)
	publisher := events.NewRedisBridge(redisClient, nil, logger)

	processor := tasks.NewProcessor(images, generator, objectStore, publisher, cfg.ImageGen, cfg.Gallery, logger)
	consumer := queue.NewConsumer(
		redisClient,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := consumer.Start(groupCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	logger.Info().
		Str("stream", cfg.Queue.Stream).
		Str("group", cfg.Queue.Group).
		Msg("worker started")

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker exited with error")
	}
	logger.Info().Msg("worker stopped")
}
