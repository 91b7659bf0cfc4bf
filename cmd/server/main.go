package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/handler"
	"github.com/snake-lounge/internal/kafka"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/service"
	"github.com/snake-lounge/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// A missing .env is normal outside local development
	envErr := godotenv.Load()

	// Load configuration
	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", envErr)
	}
	if cfgErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", cfgErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Auth
	tokens := auth.NewTokenIssuer(&cfg.Auth)
	authn := auth.NewAuthenticator(tokens, stores.revocations, stores.users, &cfg.Auth, logger)

	// Initialize services
	identityService := service.NewIdentityService(
		stores.users,
		stores.entries,
		stores.players,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		stores.revocations,
		m,
		logger,
	)
	leaderboardService := service.NewLeaderboardService(stores.entries, stores.users, &cfg.Leaderboard, m, logger)
	spectatorService := service.NewSpectatorService(stores.players, stores.users, m, logger)

	// Stale session sweeper
	sweepWorker := worker.NewSweepWorker(spectatorService, &cfg.Spectator, logger)
	if err := sweepWorker.Start(ctx); err != nil {
		logger.Error("failed to start sweep worker", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer for snapshot and score events
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		dispatcher := kafka.NewDispatcher(spectatorService, leaderboardService, m, logger)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, dispatcher, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	// Initialize HTTP handler
	opts := handler.Options{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}
	httpHandler := handler.NewHandler(identityService, leaderboardService, spectatorService, authn, m, opts, logger)
	if stores.postgres != nil {
		httpHandler.AddReadinessCheck("postgres", stores.postgres.Ping)
	}
	if stores.redis != nil {
		httpHandler.AddReadinessCheck("redis", stores.redis.Ping)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting requests first so no handler races the stores closing
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop sweep worker
	if err := sweepWorker.Stop(); err != nil {
		logger.Error("failed to stop sweep worker", "error", err)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
