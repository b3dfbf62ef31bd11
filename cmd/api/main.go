// Command api is the PriceGuard server: the REST API plus the
// price-monitoring engine (poller, cache, change detection, push dispatch).
//
// Usage:
//
//	priceguard-api
//	API_PORT=8080 priceguard-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/priceguard/server/internal/api"
	"github.com/priceguard/server/internal/api/handler"
	"github.com/priceguard/server/internal/config"
	"github.com/priceguard/server/internal/db"
	"github.com/priceguard/server/internal/engine"
	"github.com/priceguard/server/internal/fetcher"
	"github.com/priceguard/server/internal/history"
	"github.com/priceguard/server/internal/pricecache"
	"github.com/priceguard/server/internal/product"
	"github.com/priceguard/server/internal/push"
	"github.com/priceguard/server/internal/tracking"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Relational store: products, subscriptions, devices
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.InitSchema(ctx); err != nil {
		logger.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Price history time series
	hist, err := history.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("Failed to connect to history store", "error", err)
		os.Exit(1)
	}
	defer hist.Close(context.Background())
	logger.Info("History store connected", "database", cfg.MongoDatabase)

	// Bootstrap the price cache from history. The poller cannot start
	// without a baseline: a failure here is fatal.
	cache := pricecache.New()
	snapshots, err := hist.LatestAndMin(ctx)
	if err != nil {
		logger.Error("Failed to bootstrap price cache", "error", err)
		os.Exit(1)
	}
	for _, s := range snapshots {
		cache.Restore(s.ProductID, s.Price, s.IsSoldOut, s.LowestPrice)
	}
	logger.Info("Price cache bootstrapped", "products", cache.Len())

	// Push sender (nil-safe when no credentials are configured)
	sender, err := push.NewFCMSender(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		logger.Error("Failed to initialize FCM sender", "error", err)
		os.Exit(1)
	}
	if sender == nil {
		logger.Info("Push disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	// Engine
	store := tracking.New(pool)
	client := fetcher.NewClient(cfg.OpenAPIBaseURL, cfg.OpenAPIKey, cfg.FetchPerMinute, logger)
	dispatcher := engine.NewDispatcher(store, sender, logger)
	poller := engine.NewPoller(cfg.PollInterval, cfg.PollWorkers,
		client, hist, store, cache, dispatcher, logger)
	go poller.Start(ctx)

	// API
	svc := product.New(store, hist, cache, client, cfg.MaxTargetPrice, logger)
	h := handler.New(svc, pool, hist, logger)
	router := api.NewRouter(h, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting PriceGuard server",
			"addr", addr,
			"environment", cfg.Environment,
			"poll_interval", cfg.PollInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
