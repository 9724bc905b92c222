package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ratecast/ratecast/internal/config"
	"github.com/ratecast/ratecast/internal/logging"
	"github.com/ratecast/ratecast/internal/metrics"
	"github.com/ratecast/ratecast/internal/queue"
	"github.com/ratecast/ratecast/internal/resultstore"
	"github.com/ratecast/ratecast/internal/router"
	"github.com/ratecast/ratecast/internal/services"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Forecaster starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	logger.Info("Opening result store", "type", cfg.Store.Type)
	store, err := resultstore.New(cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open result store", "error", err)
	}
	defer func() { _ = store.Close() }()

	// Run events are optional; a nil publisher disables them
	var events services.EventPublisher
	if cfg.Queue.Enabled {
		logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
		pub, err := queue.NewPublisher(cfg.Queue)
		if err != nil {
			logger.Fatal("Failed to connect to Queue", "error", err)
		}
		ev := queue.NewEvents(pub, cfg.Queue.Subject)
		defer func() { _ = ev.Close() }()
		events = ev
		logger.Info("Queue connection established", "subject", ev.Subject())
	}

	recorder := metrics.New()

	svc, err := services.NewForecastService(logger, *cfg, store, events, recorder)
	if err != nil {
		logger.Fatal("Failed to build forecast service", "error", err)
	}

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}
	if cfg.Data.Path == "" {
		logger.Warn("No dataset configured, requests must carry their own points")
	}

	app := router.New(logger, svc, recorder, *cfg)

	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr, "metrics", cfg.Server.Metrics)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Runs in flight get the write timeout to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), max(cfg.Server.WriteTimeout, 10*time.Second))
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
