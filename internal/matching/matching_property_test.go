package matching

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"pgregory.net/rapid"
)

var propertyLimits = types.PriceLimits{
	Date:      time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
	BuyLimit:  11.0,
	SellLimit: 9.0,
}

func genQueue() *rapid.Generator[[]types.Bar] {
	return rapid.Custom(func(t *rapid.T) []types.Bar {
		n := rapid.IntRange(1, 30).Draw(t, "bars")
		open := time.Date(2022, 3, 1, 9, 31, 0, 0, time.UTC)

		queue := make([]types.Bar, n)
		for i := range queue {
			cents := rapid.IntRange(900, 1100).Draw(t, "cents")
			queue[i] = types.Bar{
				Time:   open.Add(time.Duration(i) * time.Minute),
				Price:  float64(cents) / 100,
				Volume: float64(rapid.IntRange(0, 5000).Draw(t, "volume")),
			}
		}

		return queue
	})
}

// filledOrZero treats the no-fill rejections as a zero fill.
func filledOrZero(t *rapid.T, fill Fill, err error) float64 {
	if err == nil {
		return fill.Shares
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeNoLiquidity, errors.ErrCodeVolumeNotMeet,
		errors.ErrCodeBuyLimitReached, errors.ErrCodeSellLimitReached:
		return 0
	}

	t.Fatalf("unexpected error: %v", err)

	return 0
}

func TestProperty_FillWithinRequested(t *testing.T) {
	engine := NewEngine(nil)

	rapid.Check(t, func(t *rapid.T) {
		queue := genQueue().Draw(t, "queue")
		side := rapid.SampledFrom([]types.PurchaseType{types.PurchaseTypeBuy, types.PurchaseTypeSell}).Draw(t, "side")
		requested := float64(rapid.IntRange(1, 50000).Draw(t, "requested"))

		fill, err := engine.Match(queue, Order{
			Side:    side,
			Shares:  requested,
			Price:   optional.None[float64](),
			BidTime: queue[0].Time,
			Limits:  propertyLimits,
		})
		filled := filledOrZero(t, fill, err)

		if filled < 0 || filled > requested {
			t.Fatalf("filled %f outside [0, %f]", filled, requested)
		}

		if err == nil && side == types.PurchaseTypeBuy && fill.Price >= propertyLimits.BuyLimit {
			t.Fatalf("buy filled at %f, at or above limit-up", fill.Price)
		}

		if err == nil && side == types.PurchaseTypeSell && fill.Price <= propertyLimits.SellLimit {
			t.Fatalf("sell filled at %f, at or below limit-down", fill.Price)
		}
	})
}

func TestProperty_BuyFillIsRoundLot(t *testing.T) {
	engine := NewEngine(nil)

	rapid.Check(t, func(t *rapid.T) {
		queue := genQueue().Draw(t, "queue")
		requested := float64(rapid.IntRange(1, 500).Draw(t, "lots") * LotSize)
		bid := float64(rapid.IntRange(900, 1100).Draw(t, "bid")) / 100

		fill, err := engine.Match(queue, Order{
			Side:    types.PurchaseTypeBuy,
			Shares:  requested,
			Price:   optional.Some(bid),
			BidTime: queue[0].Time,
			Limits:  propertyLimits,
		})
		filled := filledOrZero(t, fill, err)

		if math.Mod(filled, LotSize) != 0 {
			t.Fatalf("buy filled %f which is not a multiple of %d", filled, LotSize)
		}

		if err == nil && fill.Price > bid {
			t.Fatalf("fill price %f above bid %f", fill.Price, bid)
		}
	})
}

func TestProperty_FillMonotonicInRequested(t *testing.T) {
	engine := NewEngine(nil)

	rapid.Check(t, func(t *rapid.T) {
		queue := genQueue().Draw(t, "queue")
		side := rapid.SampledFrom([]types.PurchaseType{types.PurchaseTypeBuy, types.PurchaseTypeSell}).Draw(t, "side")
		small := rapid.IntRange(1, 50000).Draw(t, "small")
		large := rapid.IntRange(small, 100000).Draw(t, "large")

		order := Order{
			Side:    side,
			Price:   optional.None[float64](),
			BidTime: queue[0].Time,
			Limits:  propertyLimits,
		}

		order.Shares = float64(small)
		fillSmall, errSmall := engine.Match(queue, order)

		order.Shares = float64(large)
		fillLarge, errLarge := engine.Match(queue, order)

		filledSmall := filledOrZero(t, fillSmall, errSmall)
		filledLarge := filledOrZero(t, fillLarge, errLarge)

		if filledLarge < filledSmall {
			t.Fatalf("requesting %d filled %f but requesting %d filled %f", large, filledLarge, small, filledSmall)
		}
	})
}
