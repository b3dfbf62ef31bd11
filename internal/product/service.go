// Package product implements the user-facing product tracking operations:
// URL verification, starting and stopping tracking, tracking lists, details
// with rank and price history, and the recommendation ranking.
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/priceguard/server/internal/config"
	"github.com/priceguard/server/internal/fetcher"
	"github.com/priceguard/server/internal/history"
	"github.com/priceguard/server/internal/pricecache"
	"github.com/priceguard/server/internal/tracking"
)

// urlPattern matches 11st product URLs in their desktop, mobile, and share
// variants and captures the product code.
var urlPattern = regexp.MustCompile(`https?://(?:www\.|m\.)?11st\.co\.kr/products/(?:ma/|m/|pa/)?([1-9]\d*)`)

const (
	// NoPrice marks a price unknown to the cache in API responses.
	NoPrice = -1

	trackingHistoryDays = 30
	detailsHistoryDays  = 90
	recommendLimit      = 10
)

var (
	// ErrInvalidURL is returned for URLs that are not 11st product pages.
	ErrInvalidURL = errors.New("not a valid 11st product URL")
	// ErrProductNotFound is returned when a product code is unknown.
	ErrProductNotFound = errors.New("product not found")
	// ErrTargetPriceTooHigh is returned when a target exceeds the cap.
	ErrTargetPriceTooHigh = errors.New("target price exceeds maximum")
)

// --------------------------------------------------------------------------
// Response types
// --------------------------------------------------------------------------

// PriceData is one history point shaped for API responses, with the time
// as Unix milliseconds.
type PriceData struct {
	Time      int64 `json:"time"`
	Price     int   `json:"price"`
	IsSoldOut bool  `json:"isSoldOut"`
}

// TrackedItem is one entry of a user's tracking list.
type TrackedItem struct {
	ProductName string      `json:"productName"`
	ProductCode string      `json:"productCode"`
	Shop        string      `json:"shop"`
	ImageURL    string      `json:"imageUrl"`
	TargetPrice int         `json:"targetPrice"`
	Price       int         `json:"price"`
	PriceData   []PriceData `json:"priceData"`
}

// RecommendedItem is one entry of the recommendation ranking.
type RecommendedItem struct {
	ProductName string      `json:"productName"`
	ProductCode string      `json:"productCode"`
	Shop        string      `json:"shop"`
	ImageURL    string      `json:"imageUrl"`
	Price       int         `json:"price"`
	Rank        int         `json:"rank"`
	PriceData   []PriceData `json:"priceData"`
}

// Details is the product detail view.
type Details struct {
	ProductName string      `json:"productName"`
	Shop        string      `json:"shop"`
	ImageURL    string      `json:"imageUrl"`
	Rank        int         `json:"rank"`
	ShopURL     string      `json:"shopUrl"`
	TargetPrice int         `json:"targetPrice"`
	LowestPrice int         `json:"lowestPrice"`
	Price       int         `json:"price"`
	PriceData   []PriceData `json:"priceData"`
}

// Info is the verification result for a product URL.
type Info struct {
	ProductCode string `json:"productCode"`
	ProductName string `json:"productName"`
	Price       int    `json:"productPrice"`
	Shop        string `json:"shop"`
	ImageURL    string `json:"imageUrl"`
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

// Service wires the tracking store, history store, cache, and fetcher into
// the product operations the API exposes.
type Service struct {
	store          *tracking.Store
	history        *history.Store
	cache          *pricecache.Cache
	fetcher        *fetcher.Client
	maxTargetPrice int
	logger         *slog.Logger
}

// New creates a Service.
func New(store *tracking.Store, hist *history.Store, cache *pricecache.Cache, f *fetcher.Client, maxTargetPrice int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:          store,
		history:        hist,
		cache:          cache,
		fetcher:        f,
		maxTargetPrice: maxTargetPrice,
		logger:         logger,
	}
}

// ParseProductCode extracts the product code from an 11st product URL.
func ParseProductCode(productURL string) (string, error) {
	m := urlPattern.FindStringSubmatch(productURL)
	if m == nil {
		return "", ErrInvalidURL
	}
	return m[1], nil
}

// ShareURL builds the canonical share link for a product code.
func ShareURL(productCode string) string {
	return fmt.Sprintf("http://www.11st.co.kr/products/%s/share", productCode)
}

// VerifyURL validates a product URL and returns live product info.
func (s *Service) VerifyURL(ctx context.Context, productURL string) (Info, error) {
	code, err := ParseProductCode(productURL)
	if err != nil {
		return Info{}, err
	}
	info, err := s.fetcher.Fetch(ctx, code)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	return Info{
		ProductCode: info.Code,
		ProductName: info.Name,
		Price:       info.Price,
		Shop:        config.ShopName,
		ImageURL:    info.ImageURL,
	}, nil
}

// AddTracking starts tracking a product for a user. The first time any user
// registers a product it is fetched, stored, and its price is seeded into
// both the cache and the history so the next cycle has a baseline.
func (s *Service) AddTracking(ctx context.Context, userID, productCode string, targetPrice int) error {
	if targetPrice > s.maxTargetPrice {
		return ErrTargetPriceTooHigh
	}

	p, ok, err := s.store.ProductByCode(ctx, productCode)
	if err != nil {
		return err
	}
	if !ok {
		p, err = s.registerProduct(ctx, productCode)
		if err != nil {
			return err
		}
	}

	return s.store.AddSubscription(ctx, userID, p.ID, targetPrice)
}

// registerProduct fetches a product seen for the first time and seeds its
// initial price state.
func (s *Service) registerProduct(ctx context.Context, productCode string) (tracking.Product, error) {
	info, err := s.fetcher.Fetch(ctx, productCode)
	if err != nil {
		return tracking.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, err)
	}

	p := tracking.Product{
		ID:       uuid.NewString(),
		Code:     info.Code,
		Name:     info.Name,
		Shop:     config.ShopName,
		ShopURL:  ShareURL(info.Code),
		ImageURL: info.ImageURL,
	}
	if err := s.store.InsertProduct(ctx, p); err != nil {
		return tracking.Product{}, err
	}

	if err := s.history.Append(ctx, history.Point{
		ProductID: p.ID,
		Time:      time.Now().UTC(),
		Price:     info.Price,
		IsSoldOut: info.IsSoldOut,
	}); err != nil {
		// The product row exists; the poller records the price next cycle.
		s.logger.Error("seed price point failed", "product_code", productCode, "error", err)
	} else {
		s.cache.Upsert(p.ID, info.Price, info.IsSoldOut)
	}
	return p, nil
}

// TrackingList returns everything a user tracks with current prices and the
// 30-day price series.
func (s *Service) TrackingList(ctx context.Context, userID string) ([]TrackedItem, error) {
	subs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]TrackedItem, 0, len(subs))
	for _, sub := range subs {
		price := NoPrice
		if state, ok := s.cache.Get(sub.ID); ok {
			price = state.Price
		}
		data, err := s.priceData(ctx, sub.ID, trackingHistoryDays)
		if err != nil {
			return nil, err
		}
		items = append(items, TrackedItem{
			ProductName: sub.Name,
			ProductCode: sub.Code,
			Shop:        sub.Shop,
			ImageURL:    sub.ImageURL,
			TargetPrice: sub.TargetPrice,
			Price:       price,
			PriceData:   data,
		})
	}
	return items, nil
}

// Recommend returns the most tracked products with their rank.
func (s *Service) Recommend(ctx context.Context) ([]RecommendedItem, error) {
	ranked, err := s.store.Ranking(ctx, recommendLimit)
	if err != nil {
		return nil, err
	}

	items := make([]RecommendedItem, 0, len(ranked))
	for _, r := range ranked {
		price := NoPrice
		if state, ok := s.cache.Get(r.ID); ok {
			price = state.Price
		}
		data, err := s.priceData(ctx, r.ID, trackingHistoryDays)
		if err != nil {
			return nil, err
		}
		items = append(items, RecommendedItem{
			ProductName: r.Name,
			ProductCode: r.Code,
			Shop:        r.Shop,
			ImageURL:    r.ImageURL,
			Price:       price,
			Rank:        r.Rank,
			PriceData:   data,
		})
	}
	return items, nil
}

// GetDetails returns the detail view for a product: rank, the requesting
// user's target price (-1 when not tracking), current and lowest price from
// the cache, and the 90-day price series.
func (s *Service) GetDetails(ctx context.Context, userID, productCode string) (Details, error) {
	p, ok, err := s.store.ProductByCode(ctx, productCode)
	if err != nil {
		return Details{}, err
	}
	if !ok {
		return Details{}, ErrProductNotFound
	}

	targetPrice := NoPrice
	if sub, ok, err := s.store.SubscriptionFor(ctx, userID, p.ID); err != nil {
		return Details{}, err
	} else if ok {
		targetPrice = sub.TargetPrice
	}

	rank, err := s.store.RankOf(ctx, p.ID)
	if err != nil {
		return Details{}, err
	}

	price, lowest := NoPrice, NoPrice
	if state, ok := s.cache.Get(p.ID); ok {
		price, lowest = state.Price, state.LowestPrice
	}

	data, err := s.priceData(ctx, p.ID, detailsHistoryDays)
	if err != nil {
		return Details{}, err
	}

	return Details{
		ProductName: p.Name,
		Shop:        p.Shop,
		ImageURL:    p.ImageURL,
		Rank:        rank,
		ShopURL:     p.ShopURL,
		TargetPrice: targetPrice,
		LowestPrice: lowest,
		Price:       price,
		PriceData:   data,
	}, nil
}

// UpdateTargetPrice changes the user's target for a tracked product.
func (s *Service) UpdateTargetPrice(ctx context.Context, userID, productCode string, targetPrice int) error {
	if targetPrice > s.maxTargetPrice {
		return ErrTargetPriceTooHigh
	}
	p, ok, err := s.store.ProductByCode(ctx, productCode)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProductNotFound
	}
	return s.store.UpdateTargetPrice(ctx, userID, p.ID, targetPrice)
}

// StopTracking removes the user's subscription on a product.
func (s *Service) StopTracking(ctx context.Context, userID, productCode string) error {
	p, ok, err := s.store.ProductByCode(ctx, productCode)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProductNotFound
	}
	return s.store.DeleteSubscription(ctx, userID, p.ID)
}

// RegisterDevice stores a user's push token.
func (s *Service) RegisterDevice(ctx context.Context, userID, token string) error {
	return s.store.UpsertDeviceToken(ctx, userID, token)
}

// UnregisterDevice removes a user's push token. The user keeps their
// subscriptions but becomes unreachable for notifications.
func (s *Service) UnregisterDevice(ctx context.Context, userID string) error {
	return s.store.DeleteDeviceToken(ctx, userID)
}

// priceData loads the last n days of history shaped for API responses.
func (s *Service) priceData(ctx context.Context, productID string, days int) ([]PriceData, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	points, err := s.history.Range(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}
	data := make([]PriceData, len(points))
	for i, pt := range points {
		data[i] = PriceData{
			Time:      pt.Time.UnixMilli(),
			Price:     pt.Price,
			IsSoldOut: pt.IsSoldOut,
		}
	}
	return data, nil
}
