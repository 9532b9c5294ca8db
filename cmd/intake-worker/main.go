// Package main provides the order intake worker entry point.
// Consumes order placement messages and creates pending orders.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/config"
	"github.com/betteru/pharma-ops/internal/domain/order"
	"github.com/betteru/pharma-ops/internal/infrastructure/rabbit"
	"github.com/betteru/pharma-ops/internal/intake"
	"github.com/betteru/pharma-ops/internal/lookup"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
	"github.com/betteru/pharma-ops/internal/observability/tracing"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Initialize tracing
	tracingCfg := tracing.DefaultConfig("intake-worker")
	tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	provider, err := tracing.Init(context.Background(), tracingCfg)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer provider.Shutdown(context.Background())
	}

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

	// Wire the intake pipeline
	orderRepo := order.NewRepository(pool, logger)
	publisher := rabbit.NewPublisher(client, logger)

	lookupClient, err := lookup.NewClient(cfg.LookupBaseURL, logger)
	if err != nil {
		logger.Fatal("lookup client creation failed", zap.Error(err))
	}

	m := metrics.New()

	intakeCfg := intake.DefaultConfig()
	intakeCfg.MaxRetries = cfg.IntakeMaxRetries
	intakeCfg.LookupTimeout = cfg.IntakeLookupTimeout

	pipeline := intake.NewConsumer(orderRepo, lookupClient, publisher, intakeCfg, m, logger)

	consumer, err := rabbit.NewConsumer(client,
		rabbit.DefaultConsumerConfig(rabbit.QueueOrders),
		pipeline.HandleDelivery,
		logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()
	logger.Info("intake worker started", zap.String("queue", rabbit.QueueOrders))

	// Expose metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":9091", mux); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	consumer.Stop()
	logger.Info("intake worker stopped")
}
