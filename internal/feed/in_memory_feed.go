package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

// InMemoryFeed is a Feed over data loaded into memory.
// Daily closes default to the last minute bar of each session.
type InMemoryFeed struct {
	mu      sync.RWMutex
	bars    map[string][]types.Bar
	limits  map[string]map[time.Time]types.PriceLimits
	closes  types.DailyTable
	factors types.DailyTable
}

func NewInMemoryFeed() *InMemoryFeed {
	return &InMemoryFeed{
		bars:    map[string][]types.Bar{},
		limits:  map[string]map[time.Time]types.PriceLimits{},
		closes:  types.DailyTable{},
		factors: types.DailyTable{},
	}
}

// AddBars adds minute bars for security and refreshes the daily closes they cover.
func (f *InMemoryFeed) AddBars(security string, bars ...types.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := append(f.bars[security], bars...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })
	f.bars[security] = all

	for _, bar := range all {
		f.closes.Set(security, calendar.Date(bar.Time), bar.Price)
	}
}

// SetPriceLimits sets the limit prices of security for limits.Date.
func (f *InMemoryFeed) SetPriceLimits(security string, limits types.PriceLimits) {
	f.mu.Lock()
	defer f.mu.Unlock()

	day := calendar.Date(limits.Date)
	limits.Date = day

	if _, ok := f.limits[security]; !ok {
		f.limits[security] = map[time.Time]types.PriceLimits{}
	}

	f.limits[security][day] = limits
}

// SetClose overrides the close of security on day.
func (f *InMemoryFeed) SetClose(security string, day time.Time, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes.Set(security, calendar.Date(day), price)
}

// SetDRFactor sets the cumulative ex-rights factor of security from day on.
func (f *InMemoryFeed) SetDRFactor(security string, day time.Time, factor float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.factors.Set(security, calendar.Date(day), factor)
}

// Sessions returns every day with at least one close, ascending.
func (f *InMemoryFeed) Sessions() []time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return sessions(f.closes, time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
}

// GetPriceForMatch implements Feed.
func (f *InMemoryFeed) GetPriceForMatch(ctx context.Context, security string, from time.Time) ([]types.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	start := from.Truncate(time.Minute)
	day := calendar.Date(from)

	var result []types.Bar

	for _, bar := range f.bars[security] {
		if bar.Time.Before(start) || !calendar.Date(bar.Time).Equal(day) {
			continue
		}

		result = append(result, bar)
	}

	return result, nil
}

// GetTradePriceLimits implements Feed.
func (f *InMemoryFeed) GetTradePriceLimits(ctx context.Context, security string, date time.Time) (types.PriceLimits, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	limits, ok := f.limits[security][calendar.Date(date)]
	if !ok {
		return types.PriceLimits{}, errors.Newf(errors.ErrCodeMarketDataMissing, "no price limits for %s on %s", security, date.Format(time.DateOnly))
	}

	return limits, nil
}

// GetClosePrice implements Feed.
func (f *InMemoryFeed) GetClosePrice(ctx context.Context, securities []string, date time.Time) (map[string]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	day := calendar.Date(date)
	result := make(map[string]float64, len(securities))

	for _, security := range securities {
		if price, ok := asOf(f.closes[security], day); ok {
			result[security] = price
		}
	}

	return result, nil
}

// BatchGetClosePriceInRange implements Feed.
func (f *InMemoryFeed) BatchGetClosePriceInRange(ctx context.Context, securities []string, start time.Time, end time.Time) (types.DailyTable, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	days := sessions(f.closes, calendar.Date(start), calendar.Date(end))

	return forwardFill(f.closes, securities, days), nil
}

// GetDRFactor implements Feed.
func (f *InMemoryFeed) GetDRFactor(ctx context.Context, securities []string, days []time.Time, normalized bool) (types.DailyTable, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return factorTable(f.factors, securities, days, normalized), nil
}
