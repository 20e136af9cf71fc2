package broker_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/broker"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"pgregory.net/rapid"
)

func optionalDay(d int) optional.Option[time.Time] {
	return optional.Some(day(d))
}

// TestProperty_LedgerIdentities trades randomly and checks after every day that
// assets equal cash plus market value and that open lots add up to the position.
func TestProperty_LedgerIdentities(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()

		b, err := broker.NewBroker(broker.TestConfig(day(1), day(10), principal, commission), broker.Deps{
			Calendar: calendar.NewWeekdayCalendar(),
			Feed:     newMarket(),
		})
		if err != nil {
			rt.Fatalf("new broker: %v", err)
		}

		for _, d := range []int{1, 2, 3, 4, 7, 8, 9, 10} {
			if rapid.Bool().Draw(rt, "trade") {
				shares := float64(rapid.IntRange(1, 50).Draw(rt, "lots") * 100)
				side := rapid.SampledFrom([]types.PurchaseType{types.PurchaseTypeBuy, types.PurchaseTypeSell}).Draw(rt, "side")

				if side == types.PurchaseTypeBuy {
					_, err = b.Buy(ctx, "A", market, shares, at(d, 9, 31))
				} else {
					_, err = b.Sell(ctx, "A", market, shares, at(d, 9, 31))
				}

				if err != nil && !errors.IsOrderRejection(err) {
					rt.Fatalf("%s on day %d: %v", side, d, err)
				}
			}

			assets, err := b.GetAssets(ctx, optionalDay(d))
			if err != nil {
				rt.Fatalf("assets: %v", err)
			}

			cash, _ := b.GetCash(ctx, optionalDay(d))

			positions, err := b.GetPosition(ctx, optionalDay(d))
			if err != nil {
				rt.Fatalf("positions: %v", err)
			}

			held := 0.0
			value := 0.0

			for _, p := range positions {
				held += p.Shares
				value += p.Shares * closeOf(d)
			}

			if math.Abs(assets-cash-value) > 1e-6 {
				rt.Fatalf("day %d: assets %f != cash %f + value %f", d, assets, cash, value)
			}

			if cash < -1e-6 {
				rt.Fatalf("day %d: negative cash %f", d, cash)
			}

			open := 0.0

			for _, trade := range b.Trades() {
				if trade.Side == types.PurchaseTypeBuy {
					open += trade.UnsoldShares
				}
			}

			if math.Abs(open-held) > 1e-6 {
				rt.Fatalf("day %d: open lots %f != position %f", d, open, held)
			}
		}
	})
}
