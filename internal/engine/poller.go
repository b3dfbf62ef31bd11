package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/priceguard/server/internal/history"
	"github.com/priceguard/server/internal/pricecache"
	"github.com/priceguard/server/internal/tracking"
)

// Poller runs the reconciliation cycle on a fixed interval.
type Poller struct {
	interval   time.Duration
	workers    int
	fetcher    Fetcher
	history    HistoryStore
	index      TrackingIndex
	cache      *pricecache.Cache
	dispatcher *Dispatcher
	logger     *slog.Logger

	// busy enforces the single-flight rule: a tick that fires while a
	// cycle is still running is dropped, not queued.
	busy sync.Mutex
}

// NewPoller creates a Poller. workers bounds fetch parallelism.
func NewPoller(interval time.Duration, workers int, f Fetcher, h HistoryStore, idx TrackingIndex, cache *pricecache.Cache, d *Dispatcher, logger *slog.Logger) *Poller {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		interval:   interval,
		workers:    workers,
		fetcher:    f,
		history:    h,
		index:      idx,
		cache:      cache,
		dispatcher: d,
		logger:     logger,
	}
}

// Start runs cycles on the configured interval. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("price poller started", "interval", p.interval, "workers", p.workers)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := p.RunCycle(ctx)
			if result.Skipped {
				p.logger.Warn("cycle tick dropped", "reason", "previous cycle still running")
			} else {
				p.logger.Info("cycle complete", "summary", result.Summary())
			}
		case <-ctx.Done():
			p.logger.Info("price poller stopped")
			return
		}
	}
}

// fetchResult pairs a poll-set entry with its fetched data.
type fetchResult struct {
	product tracking.TrackedProduct
	price   int
	soldOut bool
	name    string
	image   string
}

// RunCycle executes one fetch → reconcile → notify sequence. If another
// cycle is in flight the call is a no-op with Skipped set.
func (p *Poller) RunCycle(ctx context.Context) CycleResult {
	if !p.busy.TryLock() {
		return CycleResult{Skipped: true}
	}
	defer p.busy.Unlock()

	start := time.Now()
	var result CycleResult

	products, err := p.index.ListTrackedProducts(ctx)
	if err != nil {
		p.logger.Error("list tracked products failed", "error", err)
		result.Duration = time.Since(start)
		return result
	}
	result.Tracked = len(products)
	if len(products) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	// Fetch all products with bounded parallelism. A failed fetch only
	// excludes that product from this cycle; siblings proceed.
	fetched := p.fetchAll(ctx, products, &result)

	// Reconcile against the cache. All history points of this cycle are
	// written in one batch before any cache update or notification, so a
	// notification is never based on a price that was not durably recorded.
	var changes []Change
	var points []history.Point
	now := time.Now().UTC()
	for _, f := range fetched {
		prior, ok := p.cache.Get(f.product.ID)
		if !changed(prior, ok, f.price, f.soldOut) {
			continue
		}
		changes = append(changes, Change{
			ProductID: f.product.ID,
			Name:      f.name,
			Price:     f.price,
			IsSoldOut: f.soldOut,
			ImageURL:  f.image,
		})
		points = append(points, history.Point{
			ProductID: f.product.ID,
			Time:      now,
			Price:     f.price,
			IsSoldOut: f.soldOut,
		})
	}
	result.Changed = len(changes)

	if len(changes) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	if err := p.history.AppendBatch(ctx, points); err != nil {
		// Data must not be dropped silently: surface the failure and leave
		// the cache untouched so the next cycle re-detects these changes.
		p.logger.Error("history append failed, cycle aborted before cache update",
			"points", len(points), "error", err)
		result.Duration = time.Since(start)
		return result
	}

	for _, c := range changes {
		p.cache.Upsert(c.ProductID, c.Price, c.IsSoldOut)
	}

	sent, failed, err := p.dispatcher.Dispatch(ctx, changes)
	if err != nil {
		// Cache and history writes stay durable; the missed notifications
		// are not backfilled.
		p.logger.Error("notification dispatch failed", "error", err)
	}
	result.Sent = sent
	result.SendFailed = failed
	result.Duration = time.Since(start)
	return result
}

// fetchAll fans product fetches out over a bounded worker pool and collects
// the successes. Failures are logged and counted, never fatal to the cycle.
func (p *Poller) fetchAll(ctx context.Context, products []tracking.TrackedProduct, result *CycleResult) []fetchResult {
	workers := p.workers
	if workers > len(products) {
		workers = len(products)
	}

	work := make(chan tracking.TrackedProduct, len(products))
	for _, prod := range products {
		work <- prod
	}
	close(work)

	var mu sync.Mutex
	var wg sync.WaitGroup
	var fetched []fetchResult

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prod := range work {
				info, err := p.fetcher.Fetch(ctx, prod.Code)

				mu.Lock()
				if err != nil {
					result.FetchFailed++
					mu.Unlock()
					p.logger.Warn("fetch failed, product skipped this cycle",
						"product_code", prod.Code, "error", err)
					continue
				}
				result.Fetched++
				fetched = append(fetched, fetchResult{
					product: prod,
					price:   info.Price,
					soldOut: info.IsSoldOut,
					name:    info.Name,
					image:   info.ImageURL,
				})
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return fetched
}
