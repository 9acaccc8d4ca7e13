package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotesync/quote-sync-service/internal/config"
	"github.com/quotesync/quote-sync-service/internal/ledger"
	"github.com/quotesync/quote-sync-service/internal/plugin"
	"github.com/quotesync/quote-sync-service/internal/server"
	"github.com/quotesync/quote-sync-service/internal/source"
	"github.com/quotesync/quote-sync-service/internal/syncer"
	"github.com/quotesync/quote-sync-service/internal/watermark"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize watermark store
	store, err := watermark.New(cfg.Watermark)
	if err != nil {
		logger.Error("failed to initialize watermark store", "error", err)
		os.Exit(1)
	}

	// Initialize downstream ledger
	sink, err := ledger.New(ctx, cfg.Ledger)
	if err != nil {
		logger.Error("failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer sink.Close(ctx)

	// Initialize quote service client
	client, err := source.NewHTTPClient(cfg.Source, logger.With("component", "source"))
	if err != nil {
		logger.Error("failed to initialize quote service client", "error", err)
		os.Exit(1)
	}

	// Capability negotiation is informational; the bridge starts either way.
	infoCtx, infoCancel := context.WithTimeout(ctx, 10*time.Second)
	if info, err := client.Info(infoCtx); err != nil {
		logger.Warn("failed to query quote service info", "error", err)
	} else {
		logger.Info("connected to quote service",
			"name", info.Name, "version", info.Version, "capabilities", info.Capabilities)
	}
	infoCancel()

	// Initialize the sync runner
	runner := syncer.NewRunner(syncer.Options{
		Source:   client,
		Store:    store,
		Logger:   logger,
		Interval: cfg.Sync.Interval,
		Push:     cfg.Sync.Push,
		Reconnect: syncer.ReconnectConfig{
			InitialDelay: cfg.Sync.ReconnectInitialDelay,
			MaxDelay:     cfg.Sync.ReconnectMaxDelay,
			Multiplier:   cfg.Sync.ReconnectMultiplier,
		},
	})

	// Register the runner through the plugin lifecycle
	registry := plugin.NewRegistry(plugin.ServiceMap{
		syncer.ServiceNamespaces: sink,
		syncer.ServiceIngest:     sink,
	})
	if err := registry.Register(ctx, runner); err != nil {
		logger.Error("failed to register sync runner", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP server for API endpoints
	httpServer := server.NewServer(cfg.Server, runner, store)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Arm the sync triggers
	if err := registry.Ready(ctx); err != nil {
		logger.Error("failed to start sync runner", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutdown signal received, gracefully shutting down")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown services
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error("sync runner shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
