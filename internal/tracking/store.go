// Package tracking is the data access layer for products, tracking
// subscriptions, and device registrations.
//
// The poller reads the poll set, batched subscription lookups, and device
// tokens; the API reads and writes subscriptions on behalf of users. All
// queries run through prepared statements registered in internal/db.
package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/priceguard/server/internal/db"
)

var (
	// ErrAlreadyTracking is returned when a user tracks a product twice.
	ErrAlreadyTracking = errors.New("product already tracked by user")
	// ErrNotTracking is returned when a subscription does not exist.
	ErrNotTracking = errors.New("product not tracked by user")
)

// Product is a registered product.
type Product struct {
	ID       string `json:"-"`
	Code     string `json:"productCode"`
	Name     string `json:"productName"`
	Shop     string `json:"shop"`
	ShopURL  string `json:"shopUrl"`
	ImageURL string `json:"imageUrl"`
}

// TrackedProduct identifies one entry of the poll set.
type TrackedProduct struct {
	ID   string
	Code string
}

// Subscription is one user's price target for one product.
type Subscription struct {
	UserID      string
	ProductID   string
	TargetPrice int
}

// UserItem is a product a user tracks, joined with the target price.
type UserItem struct {
	Product
	TargetPrice int
}

// RankedProduct is a product with its position in the tracker-count ranking.
type RankedProduct struct {
	Product
	Trackers int
	Rank     int
}

// Store provides tracking index reads and subscription writes.
type Store struct {
	pool *db.Pool
}

// New creates a Store backed by the given pool.
func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// Poll-set reads (used by the engine)
// --------------------------------------------------------------------------

// ListTrackedProducts returns the distinct products with at least one
// active subscription.
func (s *Store) ListTrackedProducts(ctx context.Context) ([]TrackedProduct, error) {
	rows, err := s.pool.Query(ctx, "list_tracked_products")
	if err != nil {
		return nil, fmt.Errorf("list tracked products: %w", err)
	}
	defer rows.Close()

	var products []TrackedProduct
	for rows.Next() {
		var p TrackedProduct
		if err := rows.Scan(&p.ID, &p.Code); err != nil {
			return nil, fmt.Errorf("scan tracked product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// FindSubscriptionsForProducts returns every subscription on any of the
// given products in one batched query.
func (s *Store) FindSubscriptionsForProducts(ctx context.Context, productIDs []string) ([]Subscription, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, "subscriptions_for_products", productIDs)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.UserID, &sub.ProductID, &sub.TargetPrice); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeviceTokenFor resolves a user's push token. A missing registration is
// not an error: the user is simply unreachable.
func (s *Store) DeviceTokenFor(ctx context.Context, userID string) (string, bool, error) {
	var token string
	err := s.pool.QueryRow(ctx, "device_token_for", userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("device token for %s: %w", userID, err)
	}
	return token, true, nil
}

// --------------------------------------------------------------------------
// Products
// --------------------------------------------------------------------------

// ProductByCode looks up a product by its shop product code.
func (s *Store) ProductByCode(ctx context.Context, code string) (Product, bool, error) {
	var p Product
	err := s.pool.QueryRow(ctx, "product_by_code", code).
		Scan(&p.ID, &p.Code, &p.Name, &p.Shop, &p.ShopURL, &p.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, fmt.Errorf("product by code %s: %w", code, err)
	}
	return p, true, nil
}

// InsertProduct registers a product seen for the first time.
func (s *Store) InsertProduct(ctx context.Context, p Product) error {
	_, err := s.pool.Exec(ctx, "insert_product",
		p.ID, p.Code, p.Name, p.Shop, p.ShopURL, p.ImageURL)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.Code, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

// AddSubscription starts tracking a product for a user. The (user, product)
// pair is unique; tracking the same product twice fails with
// ErrAlreadyTracking.
func (s *Store) AddSubscription(ctx context.Context, userID, productID string, targetPrice int) error {
	tag, err := s.pool.Exec(ctx, "insert_subscription", userID, productID, targetPrice)
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyTracking
	}
	return nil
}

// SubscriptionFor returns a user's subscription on a product, if any.
func (s *Store) SubscriptionFor(ctx context.Context, userID, productID string) (Subscription, bool, error) {
	var sub Subscription
	err := s.pool.QueryRow(ctx, "subscription_for", userID, productID).
		Scan(&sub.UserID, &sub.ProductID, &sub.TargetPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, fmt.Errorf("subscription for: %w", err)
	}
	return sub, true, nil
}

// ListForUser returns everything a user tracks, oldest subscription first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]UserItem, error) {
	rows, err := s.pool.Query(ctx, "subscriptions_for_user", userID)
	if err != nil {
		return nil, fmt.Errorf("list for user: %w", err)
	}
	defer rows.Close()

	var items []UserItem
	for rows.Next() {
		var it UserItem
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.Shop, &it.ShopURL, &it.ImageURL, &it.TargetPrice); err != nil {
			return nil, fmt.Errorf("scan user item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateTargetPrice changes a user's target for a tracked product.
func (s *Store) UpdateTargetPrice(ctx context.Context, userID, productID string, targetPrice int) error {
	tag, err := s.pool.Exec(ctx, "update_target_price", userID, productID, targetPrice)
	if err != nil {
		return fmt.Errorf("update target price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotTracking
	}
	return nil
}

// DeleteSubscription stops tracking a product for a user.
func (s *Store) DeleteSubscription(ctx context.Context, userID, productID string) error {
	tag, err := s.pool.Exec(ctx, "delete_subscription", userID, productID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotTracking
	}
	return nil
}

// --------------------------------------------------------------------------
// Ranking
// --------------------------------------------------------------------------

// Ranking returns products ordered by tracker count, most tracked first.
func (s *Store) Ranking(ctx context.Context, limit int) ([]RankedProduct, error) {
	rows, err := s.pool.Query(ctx, "ranking_list", limit)
	if err != nil {
		return nil, fmt.Errorf("ranking list: %w", err)
	}
	defer rows.Close()

	var ranked []RankedProduct
	for rows.Next() {
		var r RankedProduct
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Shop, &r.ShopURL, &r.ImageURL, &r.Trackers); err != nil {
			return nil, fmt.Errorf("scan ranked product: %w", err)
		}
		r.Rank = len(ranked) + 1
		ranked = append(ranked, r)
	}
	return ranked, rows.Err()
}

// RankOf returns a product's position in the tracker-count ranking, or -1
// when the product has no trackers.
func (s *Store) RankOf(ctx context.Context, productID string) (int, error) {
	var rank int
	err := s.pool.QueryRow(ctx, "rank_of_product", productID).Scan(&rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("rank of product: %w", err)
	}
	return rank, nil
}

// --------------------------------------------------------------------------
// Devices
// --------------------------------------------------------------------------

// UpsertDeviceToken registers or replaces a user's push token. At most one
// current token per user.
func (s *Store) UpsertDeviceToken(ctx context.Context, userID, token string) error {
	if _, err := s.pool.Exec(ctx, "upsert_device", userID, token); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// DeleteDeviceToken removes a user's push token.
func (s *Store) DeleteDeviceToken(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, "delete_device", userID); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
