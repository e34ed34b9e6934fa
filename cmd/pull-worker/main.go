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
	"github.com/wmo-raf/adl-collector-app-sub000/internal/refdata"
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

	log.Info().Str("version", cfg.App.Version).Msg("Starting pull worker")

	// Open local store
	st, err := store.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer st.Close()

	// Token manager backed by the local store
	tokens := auth.NewManager(st, sync.NewRefreshClient(cfg))

	// Create pull worker
	pullService := refdata.NewService(cfg, st, tokens)
	pullWorker := worker.NewPullWorker(cfg, pullService)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker
	go func() {
		if err := pullWorker.Start(ctx); err != nil && err != context.Canceled {
			log.Fatal().Err(err).Msg("Pull worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down pull worker...")

	// Cancel context to stop worker
	cancel()
	pullWorker.Stop()

	log.Info().Msg("Pull worker exited")
}
