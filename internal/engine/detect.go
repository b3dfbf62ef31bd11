package engine

import "github.com/priceguard/server/internal/pricecache"

// changed reports whether freshly fetched data differs meaningfully from the
// cached state. A product with no prior entry always counts as changed.
// Price comparison is exact — no tolerance.
func changed(prior pricecache.State, hasPrior bool, price int, isSoldOut bool) bool {
	if !hasPrior {
		return true
	}
	return prior.IsSoldOut != isSoldOut || prior.Price != price
}
