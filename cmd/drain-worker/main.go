package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/auth"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/queue"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/storage"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/sync"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting drain worker")

	// Open local store
	st, err := store.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer st.Close()

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Token manager backed by the local store
	tokens := auth.NewManager(st, sync.NewRefreshClient(cfg))

	// Create drain worker
	orchestrator := sync.NewOrchestrator(cfg, st, tokens)
	drainWorker := worker.NewDrainWorker(cfg, st, orchestrator, redisClient)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archive runs alongside the drain loop when enabled
	if cfg.Workers.Archive.Enabled {
		s3Storage, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}

		archiveWorker := worker.NewArchiveWorker(cfg, st, s3Storage)
		go func() {
			if err := archiveWorker.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Archive worker failed")
			}
		}()
	}

	// Start worker
	go func() {
		if err := drainWorker.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Drain worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down drain worker...")

	// Cancel context to stop worker
	cancel()
	drainWorker.Stop()

	log.Info().Msg("Drain worker exited")
}
