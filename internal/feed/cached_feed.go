package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/types"
)

// CachedFeed wraps a Feed and memoizes the daily lookups the ledger repeats on
// every forward. Minute bars are not cached.
type CachedFeed struct {
	underlying  Feed
	limitCache  map[string]types.PriceLimits
	factorCache map[string]types.DailyTable
	rangeCache  map[string]types.DailyTable
	mu          sync.RWMutex
}

// NewCachedFeed creates a new CachedFeed wrapping the given Feed.
func NewCachedFeed(underlying Feed) *CachedFeed {
	return &CachedFeed{
		underlying:  underlying,
		limitCache:  make(map[string]types.PriceLimits),
		factorCache: make(map[string]types.DailyTable),
		rangeCache:  make(map[string]types.DailyTable),
	}
}

// ClearCache drops everything cached so far.
func (c *CachedFeed) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limitCache = make(map[string]types.PriceLimits)
	c.factorCache = make(map[string]types.DailyTable)
	c.rangeCache = make(map[string]types.DailyTable)
}

// GetPriceForMatch implements Feed.
func (c *CachedFeed) GetPriceForMatch(ctx context.Context, security string, from time.Time) ([]types.Bar, error) {
	return c.underlying.GetPriceForMatch(ctx, security, from)
}

// GetClosePrice implements Feed.
func (c *CachedFeed) GetClosePrice(ctx context.Context, securities []string, date time.Time) (map[string]float64, error) {
	return c.underlying.GetClosePrice(ctx, securities, date)
}

// GetTradePriceLimits implements Feed with caching. Errors are not cached.
func (c *CachedFeed) GetTradePriceLimits(ctx context.Context, security string, date time.Time) (types.PriceLimits, error) {
	key := security + "|" + date.Format(time.DateOnly)

	// Check cache first (read lock)
	c.mu.RLock()
	if limits, ok := c.limitCache[key]; ok {
		c.mu.RUnlock()
		return limits, nil
	}
	c.mu.RUnlock()

	// Cache miss - fetch from underlying (write lock)
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if limits, ok := c.limitCache[key]; ok {
		return limits, nil
	}

	limits, err := c.underlying.GetTradePriceLimits(ctx, security, date)
	if err != nil {
		return types.PriceLimits{}, err
	}

	c.limitCache[key] = limits

	return limits, nil
}

// BatchGetClosePriceInRange implements Feed with caching.
func (c *CachedFeed) BatchGetClosePriceInRange(ctx context.Context, securities []string, start time.Time, end time.Time) (types.DailyTable, error) {
	key := fmt.Sprintf("%s|%s|%s", strings.Join(securities, ","), start.Format(time.DateOnly), end.Format(time.DateOnly))

	return c.table(func() map[string]types.DailyTable { return c.rangeCache }, key, func() (types.DailyTable, error) {
		return c.underlying.BatchGetClosePriceInRange(ctx, securities, start, end)
	})
}

// GetDRFactor implements Feed with caching.
func (c *CachedFeed) GetDRFactor(ctx context.Context, securities []string, days []time.Time, normalized bool) (types.DailyTable, error) {
	formatted := make([]string, len(days))
	for i, day := range days {
		formatted[i] = day.Format(time.DateOnly)
	}

	key := fmt.Sprintf("%s|%s|%t", strings.Join(securities, ","), strings.Join(formatted, ","), normalized)

	return c.table(func() map[string]types.DailyTable { return c.factorCache }, key, func() (types.DailyTable, error) {
		return c.underlying.GetDRFactor(ctx, securities, days, normalized)
	})
}

// table looks key up in the cache returned by pick, fetching on a miss.
// Callers must not modify the returned table.
func (c *CachedFeed) table(pick func() map[string]types.DailyTable, key string, fetch func() (types.DailyTable, error)) (types.DailyTable, error) {
	c.mu.RLock()
	if table, ok := pick()[key]; ok {
		c.mu.RUnlock()
		return table, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	cache := pick()
	if table, ok := cache[key]; ok {
		return table, nil
	}

	table, err := fetch()
	if err != nil {
		return nil, err
	}

	cache[key] = table

	return table, nil
}
