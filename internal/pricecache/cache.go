// Package pricecache holds the authoritative in-memory snapshot of the
// latest known price and availability of every tracked product.
//
// The cache is the source of truth for read paths (tracking list, product
// details) and the baseline the poller compares fresh fetches against. It is
// rebuilt from the price history store on startup and mutated only by the
// single active reconciliation cycle; concurrent readers always observe a
// complete pre- or post-update entry.
package pricecache

import "sync"

// State is the cached snapshot for one product.
type State struct {
	Price       int
	IsSoldOut   bool
	LowestPrice int
}

// Cache is a thread-safe product price cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]State
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]State)}
}

// Get returns the cached state for a product, if present.
func (c *Cache) Get(productID string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[productID]
	return s, ok
}

// Upsert records a freshly observed price and availability. The lowest price
// never increases: it is the minimum of the previous lowest and the new
// price. Returns the resulting state.
func (c *Cache) Upsert(productID string, price int, isSoldOut bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	lowest := price
	if prev, ok := c.entries[productID]; ok && prev.LowestPrice < lowest {
		lowest = prev.LowestPrice
	}
	s := State{Price: price, IsSoldOut: isSoldOut, LowestPrice: lowest}
	c.entries[productID] = s
	return s
}

// Restore installs a state reconstructed from history. Used by the startup
// bootstrap, which computes the latest price and the all-time minimum per
// product in a single aggregate query.
func (c *Cache) Restore(productID string, price int, isSoldOut bool, lowestPrice int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[productID] = State{Price: price, IsSoldOut: isSoldOut, LowestPrice: lowestPrice}
}

// Len returns the number of cached products.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
