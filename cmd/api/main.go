package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fluxgallery/internal/cache"
	"fluxgallery/internal/completion"
	"fluxgallery/internal/config"
	"fluxgallery/internal/database"
	"fluxgallery/internal/enhance"
	"fluxgallery/internal/events"
	"fluxgallery/internal/handlers"
	"fluxgallery/internal/jobs"
	"fluxgallery/internal/log"
	"fluxgallery/internal/repository"
	"fluxgallery/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")

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

	bus := events.NewBus()
	bridge := events.NewRedisBridge(redisClient, bus, logger)

	completionClient := completion.NewClient(cfg.Completion)
	enhancer := enhance.New(completionClient, redisClient, cfg.Completion, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, db, redisClient, enhancer, bus, bridge)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	images := repository.NewImageRepository(db)
	scheduler := jobs.NewScheduler(images, redisClient, cfg.Queue.Stream, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(httpServer.Start)

	group.Go(func() error {
		err := bridge.Run(groupCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()

		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("api exited with error")
	}
	logger.Info().Msg("api stopped")
}
