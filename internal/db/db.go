// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/priceguard/server/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// InitSchema creates the relational tables if they do not exist yet.
func (p *Pool) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id           UUID PRIMARY KEY,
		product_code TEXT NOT NULL UNIQUE,
		product_name TEXT NOT NULL,
		shop         TEXT NOT NULL,
		shop_url     TEXT NOT NULL,
		image_url    TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS tracking_products (
		user_id      TEXT NOT NULL,
		product_id   UUID NOT NULL REFERENCES products(id),
		target_price BIGINT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_tracking_product ON tracking_products(product_id);
	CREATE TABLE IF NOT EXISTS user_devices (
		user_id    TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// registerPreparedStatements registers all statements the API and polling
// layers use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Products
		"product_by_code": "SELECT id, product_code, product_name, shop, shop_url, image_url FROM products WHERE product_code = $1",
		"insert_product":  "INSERT INTO products (id, product_code, product_name, shop, shop_url, image_url) VALUES ($1, $2, $3, $4, $5, $6)",

		// Poll set: distinct products with at least one subscription
		"list_tracked_products": "SELECT DISTINCT p.id, p.product_code FROM products p JOIN tracking_products t ON t.product_id = p.id",

		// Subscriptions
		"subscriptions_for_products": "SELECT user_id, product_id, target_price FROM tracking_products WHERE product_id = ANY($1)",
		"subscription_for":           "SELECT user_id, product_id, target_price FROM tracking_products WHERE user_id = $1 AND product_id = $2",
		"subscriptions_for_user":     "SELECT p.id, p.product_code, p.product_name, p.shop, p.shop_url, p.image_url, t.target_price FROM tracking_products t JOIN products p ON p.id = t.product_id WHERE t.user_id = $1 ORDER BY t.created_at",
		"insert_subscription":        "INSERT INTO tracking_products (user_id, product_id, target_price) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		"update_target_price":        "UPDATE tracking_products SET target_price = $3 WHERE user_id = $1 AND product_id = $2",
		"delete_subscription":        "DELETE FROM tracking_products WHERE user_id = $1 AND product_id = $2",

		// Ranking by tracker count
		"ranking_list": `
			SELECT p.id, p.product_code, p.product_name, p.shop, p.shop_url, p.image_url, COUNT(t.user_id) AS trackers
			FROM products p JOIN tracking_products t ON t.product_id = p.id
			GROUP BY p.id
			ORDER BY trackers DESC, p.created_at
			LIMIT $1`,
		"rank_of_product": `
			SELECT rank FROM (
				SELECT p.id, ROW_NUMBER() OVER (ORDER BY COUNT(t.user_id) DESC, p.created_at) AS rank
				FROM products p JOIN tracking_products t ON t.product_id = p.id
				GROUP BY p.id
			) ranked WHERE id = $1`,

		// Devices
		"device_token_for": "SELECT token FROM user_devices WHERE user_id = $1",
		"upsert_device":    "INSERT INTO user_devices (user_id, token, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()",
		"delete_device":    "DELETE FROM user_devices WHERE user_id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
