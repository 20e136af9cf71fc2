// Package feed provides the historical market data the broker matches and values against.
package feed

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/types"
)

// Feed is the market data capability consumed by the ledger and the broker.
type Feed interface {
	// GetPriceForMatch returns the minute bars of security from the minute of from
	// to the session close, sorted by time.
	GetPriceForMatch(ctx context.Context, security string, from time.Time) ([]types.Bar, error)
	// GetTradePriceLimits returns the limit-up and limit-down prices of security on date.
	GetTradePriceLimits(ctx context.Context, security string, date time.Time) (types.PriceLimits, error)
	// GetClosePrice returns the latest close on or before date for each security.
	// Securities without any close are left out of the result.
	GetClosePrice(ctx context.Context, securities []string, date time.Time) (map[string]float64, error)
	// BatchGetClosePriceInRange returns the daily closes of every session in [start, end],
	// forward-filled and seeded with the last close before start.
	BatchGetClosePriceInRange(ctx context.Context, securities []string, start time.Time, end time.Time) (types.DailyTable, error)
	// GetDRFactor returns the ex-rights factor of each security on each of days.
	// When normalized is set the factors are divided by the factor of the first day.
	// Days before the first known factor are left out.
	GetDRFactor(ctx context.Context, securities []string, days []time.Time, normalized bool) (types.DailyTable, error)
}
