// Package main provides the pharmacy API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/api/handlers"
	"github.com/betteru/pharma-ops/internal/api/middleware"
	"github.com/betteru/pharma-ops/internal/config"
	"github.com/betteru/pharma-ops/internal/domain/inventory"
	"github.com/betteru/pharma-ops/internal/domain/medication"
	"github.com/betteru/pharma-ops/internal/domain/order"
	"github.com/betteru/pharma-ops/internal/lookup"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
	"github.com/betteru/pharma-ops/internal/observability/tracing"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg := config.Load()

	// Initialize tracing
	tracingCfg := tracing.DefaultConfig("pharmacy-api")
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
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("connected to database")

	// Initialize repositories and the lookup client
	orderRepo := order.NewRepository(pool, logger)
	medicationRepo := medication.NewRepository(pool, logger)
	inventoryRepo := inventory.NewRepository(pool, logger)

	lookupClient, err := lookup.NewClient(cfg.LookupBaseURL, logger)
	if err != nil {
		logger.Fatal("lookup client creation failed", zap.Error(err))
	}

	m := metrics.New()

	// Initialize handlers
	ordersHandler := handlers.NewOrdersHandler(orderRepo, medicationRepo, m, logger)
	medicationsHandler := handlers.NewMedicationsHandler(medicationRepo, m, logger)
	inventoryHandler := handlers.NewInventoryHandler(inventoryRepo, logger)
	patientsHandler := handlers.NewPatientsHandler(lookupClient, m, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("pharmacy-api"))

	// Health and telemetry
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Mount("/orders", ordersHandler.Routes())
	r.Mount("/medications", medicationsHandler.Routes())
	r.Mount("/inventory", inventoryHandler.Routes())
	r.Mount("/patient", patientsHandler.Routes())

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting pharmacy API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"pharmacy-api","version":"1.0.0"}`)
}
