// Package engine implements the price-monitoring core: a ticker-driven
// poller that fetches every tracked product, detects meaningful changes
// against the in-memory cache, persists price points, and fans push
// notifications out to subscribers whose target price was met.
//
// Cycle: list tracked products → fetch (bounded parallelism, per-product
// failure isolation) → detect changes → append history → update cache →
// dispatch notifications. At most one cycle runs at a time; a tick that
// fires mid-cycle is dropped.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/priceguard/server/internal/fetcher"
	"github.com/priceguard/server/internal/history"
	"github.com/priceguard/server/internal/push"
	"github.com/priceguard/server/internal/tracking"
)

// Notification copy, interpolated with product name and price.
const (
	notificationTitle      = "목표 가격 이하로 내려갔습니다!"
	notificationBodyFormat = "%s의 현재 가격은 %d원 입니다."
)

// --------------------------------------------------------------------------
// Collaborator contracts
// --------------------------------------------------------------------------

// Fetcher retrieves current product data from the shop.
type Fetcher interface {
	Fetch(ctx context.Context, productCode string) (fetcher.Product, error)
}

// HistoryStore appends price points to the time-series store.
type HistoryStore interface {
	AppendBatch(ctx context.Context, points []history.Point) error
}

// TrackingIndex provides the poll set, subscriber lookups, and device tokens.
type TrackingIndex interface {
	ListTrackedProducts(ctx context.Context) ([]tracking.TrackedProduct, error)
	FindSubscriptionsForProducts(ctx context.Context, productIDs []string) ([]tracking.Subscription, error)
	DeviceTokenFor(ctx context.Context, userID string) (string, bool, error)
}

// Sender delivers a batch of push payloads.
type Sender interface {
	SendBatch(ctx context.Context, payloads []push.Payload) (sent, failed int, err error)
}

// --------------------------------------------------------------------------
// Cycle types
// --------------------------------------------------------------------------

// Change is one product whose fetched data differed from the cached state.
type Change struct {
	ProductID string
	Name      string
	Price     int
	IsSoldOut bool
	ImageURL  string
}

// CycleResult summarizes one reconciliation cycle.
type CycleResult struct {
	Skipped     bool
	Tracked     int
	Fetched     int
	FetchFailed int
	Changed     int
	Sent        int
	SendFailed  int
	Duration    time.Duration
}

// Summary renders the result for logs and the CLI.
func (r CycleResult) Summary() string {
	if r.Skipped {
		return "skipped (previous cycle still running)"
	}
	return fmt.Sprintf("tracked=%d fetched=%d fetch_failed=%d changed=%d sent=%d send_failed=%d duration=%s",
		r.Tracked, r.Fetched, r.FetchFailed, r.Changed, r.Sent, r.SendFailed, r.Duration.Round(time.Millisecond))
}
