package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/kvstore/internal/config"
	"github.com/p-blackswan/kvstore/internal/health"
	"github.com/p-blackswan/kvstore/internal/httpapi"
	"github.com/p-blackswan/kvstore/internal/kvstore"
	"github.com/p-blackswan/kvstore/internal/metrics"
	"github.com/p-blackswan/kvstore/internal/perf"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("http_addr", cfg.HTTPAddr).
		Int("store_capacity", cfg.StoreCapacity).
		Str("log_file", cfg.LogFile).
		Msg("starting kvstore")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Store core: opens the WAL and replays it to rebuild the map.
	store, err := kvstore.Open(kvstore.Config{
		Capacity:           cfg.StoreCapacity,
		LogFile:            cfg.LogFile,
		CompactionInterval: cfg.CompactionInterval,
		MaxLogSize:         cfg.MaxLogSize,
		CleanupInterval:    cfg.CleanupInterval,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := store.Healthy(); err != nil {
			logger.Warn().Err(err).Msg("store health check failed")
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Background TTL sweeper + compactor
	store.Start(ctx)

	metricsCollector := metrics.New()
	tracker := perf.New(perf.DefaultWindow)

	server := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr:  cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, store, checker, metricsCollector, tracker, logger)

	// Start HTTP server
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("http server error")
	}

	// Cancel background tasks and shut down the server.
	cancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("http server shutdown error")
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("forced http shutdown after timeout")
	}

	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("store close error")
	}

	logger.Info().Msg("kvstore stopped")
}
