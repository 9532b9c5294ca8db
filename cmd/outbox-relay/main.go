// Package main provides the outbox relay service entry point.
// Implements the Transactional Outbox pattern relay.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/config"
	"github.com/betteru/pharma-ops/internal/infrastructure/postgres"
	"github.com/betteru/pharma-ops/internal/infrastructure/rabbit"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	logger.Info("connected to database")

	// Connect to broker
	clientCfg := rabbit.DefaultClientConfig()
	clientCfg.URL = cfg.AMQPURL

	client, err := rabbit.Connect(clientCfg, logger)
	if err != nil {
		logger.Fatal("broker connection failed", zap.Error(err))
	}
	defer client.Close()

	logger.Info("connected to broker")

	// Create outbox relay
	outboxCfg := postgres.DefaultOutboxConfig()
	outboxCfg.BatchSize = cfg.OutboxBatchSize
	outboxCfg.PollInterval = cfg.OutboxPollInterval
	outboxCfg.MaxRetries = cfg.OutboxMaxRetries

	m := metrics.New()

	publisher := rabbit.NewPublisher(client, logger)
	outbox := postgres.NewOutbox(pool, publisher, outboxCfg, m, logger)

	// Start processing
	outbox.Start()
	logger.Info("outbox relay started")

	// Expose metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":9092", mux); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	// Periodic cleanup of relayed entries
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupDone:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := outbox.CleanupProcessed(ctx, 24*time.Hour); err != nil {
					logger.Warn("outbox cleanup failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("outbox entries cleaned", zap.Int64("count", n))
				}
				cancel()
			}
		}
	}()

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	close(cleanupDone)
	outbox.Stop()
	logger.Info("outbox relay stopped")
}
