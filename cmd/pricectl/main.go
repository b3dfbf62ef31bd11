// Command pricectl is the PriceGuard operations CLI.
//
// Usage:
//
//	pricectl check
//	pricectl check --no-push
//	pricectl bootstrap
//	pricectl history --product 5897533626 --days 30
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/priceguard/server/internal/config"
	"github.com/priceguard/server/internal/db"
	"github.com/priceguard/server/internal/engine"
	"github.com/priceguard/server/internal/fetcher"
	"github.com/priceguard/server/internal/history"
	"github.com/priceguard/server/internal/pricecache"
	"github.com/priceguard/server/internal/push"
	"github.com/priceguard/server/internal/tracking"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "pricectl",
		Short: "PriceGuard operations CLI",
	}

	root.AddCommand(checkCmd())
	root.AddCommand(bootstrapCmd())
	root.AddCommand(historyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// check command — run one reconciliation cycle
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	var noPush bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one fetch → reconcile → notify cycle and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, cfg *config.Config, pool *db.Pool, hist *history.Store) error {
				cache := pricecache.New()
				snapshots, err := hist.LatestAndMin(ctx)
				if err != nil {
					return fmt.Errorf("bootstrap cache: %w", err)
				}
				for _, s := range snapshots {
					cache.Restore(s.ProductID, s.Price, s.IsSoldOut, s.LowestPrice)
				}

				credentials := cfg.FCMCredentialsFile
				if noPush {
					credentials = ""
				}
				sender, err := push.NewFCMSender(ctx, credentials, logger)
				if err != nil {
					return fmt.Errorf("init fcm: %w", err)
				}

				store := tracking.New(pool)
				client := fetcher.NewClient(cfg.OpenAPIBaseURL, cfg.OpenAPIKey, cfg.FetchPerMinute, logger)
				dispatcher := engine.NewDispatcher(store, sender, logger)
				poller := engine.NewPoller(cfg.PollInterval, cfg.PollWorkers,
					client, hist, store, cache, dispatcher, logger)

				start := time.Now()
				result := poller.RunCycle(ctx)
				logger.Info("cycle finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Detect and persist changes without sending notifications")
	return cmd
}

// --------------------------------------------------------------------------
// bootstrap command — print the cache rebuilt from history
// --------------------------------------------------------------------------

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Rebuild the price cache from history and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, cfg *config.Config, pool *db.Pool, hist *history.Store) error {
				snapshots, err := hist.LatestAndMin(ctx)
				if err != nil {
					return fmt.Errorf("aggregate history: %w", err)
				}
				for _, s := range snapshots {
					fmt.Printf("%s\tprice=%d\tsold_out=%t\tlowest=%d\n",
						s.ProductID, s.Price, s.IsSoldOut, s.LowestPrice)
				}
				fmt.Printf("%d products\n", len(snapshots))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// history command — print the price series for one product
// --------------------------------------------------------------------------

func historyCmd() *cobra.Command {
	var productCode string
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the price history of a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			if productCode == "" {
				return fmt.Errorf("--product is required")
			}
			return withDeps(func(ctx context.Context, cfg *config.Config, pool *db.Pool, hist *history.Store) error {
				store := tracking.New(pool)
				p, ok, err := store.ProductByCode(ctx, productCode)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown product code %s", productCode)
				}

				to := time.Now().UTC()
				points, err := hist.Range(ctx, p.ID, to.AddDate(0, 0, -days), to)
				if err != nil {
					return err
				}
				for _, pt := range points {
					fmt.Printf("%s\tprice=%d\tsold_out=%t\n",
						pt.Time.Format(time.RFC3339), pt.Price, pt.IsSoldOut)
				}
				fmt.Printf("%d points (%s, last %d days)\n", len(points), p.Name, days)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&productCode, "product", "", "Product code")
	cmd.Flags().IntVar(&days, "days", 30, "Days of history")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withDeps loads config, connects Postgres and Mongo, runs fn, and tears
// everything down.
func withDeps(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool, hist *history.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	hist, err := history.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connect history store: %w", err)
	}
	defer hist.Close(context.Background())

	return fn(ctx, cfg, pool, hist)
}
