// Package matching fills an order against the liquidity left in a session.
//
// The liquidity queue is the sequence of minute bars from the bid time to the
// session close. Each bar offers its whole volume at its price. Bars that the
// order may not trade against (price limits, limit price) are filtered out
// before matching, and the order consumes the remaining bars in time order
// until it is filled or the session is exhausted.
package matching

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/internal/utils"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LotSize is the minimum tradable unit for buy orders.
const LotSize = 100

// PriceTolerance is used when comparing a bar price against a limit price.
const PriceTolerance = 1e-4

// Order is what the engine needs to know about an entrust.
type Order struct {
	Side   types.PurchaseType
	Shares float64
	// Price is the limit price, None for a market order.
	Price   optional.Option[float64]
	BidTime time.Time
	Limits  types.PriceLimits
}

// Fill is the result of matching an order.
type Fill struct {
	// Price is the volume weighted average over the consumed bars.
	Price float64
	// Shares is the filled quantity, never more than requested.
	Shares float64
	// Time is the time of the last bar the order consumed.
	Time time.Time
}

// IsPartial reports whether the fill falls short of requested.
func (f Fill) IsPartial(requested float64) bool {
	return f.Shares < requested-types.ClosedEpsilon
}

type Engine struct {
	logger *logger.Logger
}

func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{logger: log}
}

// EffectiveBid returns the price an order is willing to trade at.
// A market buy bids the limit-up price and a market sell the limit-down price.
func EffectiveBid(side types.PurchaseType, price optional.Option[float64], limits types.PriceLimits) float64 {
	if price.IsSome() {
		return price.Unwrap()
	}

	if side == types.PurchaseTypeBuy {
		return limits.BuyLimit
	}

	return limits.SellLimit
}

// Match fills order against queue. The queue must be sorted by time.
func (e *Engine) Match(queue []types.Bar, order Order) (Fill, error) {
	if order.Shares <= 0 {
		return Fill{}, errors.Newf(errors.ErrCodeBadParameter, "requested shares must be positive, got %f", order.Shares)
	}

	var (
		eligible []types.Bar
		err      error
	)

	switch order.Side {
	case types.PurchaseTypeBuy:
		eligible, err = filterBuy(queue, order)
	case types.PurchaseTypeSell:
		eligible, err = filterSell(queue, order)
	default:
		return Fill{}, errors.Newf(errors.ErrCodeBadParameter, "unknown order side %q", order.Side)
	}

	if err != nil {
		return Fill{}, err
	}

	if len(eligible) == 0 {
		return Fill{}, errors.New(errors.ErrCodeNoLiquidity, "no bar in the session satisfies the order price")
	}

	filled := min(cumulativeUntil(eligible, order.Shares), order.Shares)

	if order.Side == types.PurchaseTypeBuy {
		filled = utils.FloorToLot(filled, LotSize)
		if filled <= 0 {
			return Fill{}, errors.Newf(errors.ErrCodeVolumeNotMeet, "session volume is below one lot of %d shares", LotSize)
		}
	}

	if filled <= 0 {
		return Fill{}, errors.New(errors.ErrCodeNoLiquidity, "no volume left in the session")
	}

	fill := consume(eligible, filled)

	e.logger.Debug("Order matched",
		zap.String("side", string(order.Side)),
		zap.Float64("requested", order.Shares),
		zap.Float64("filled", fill.Shares),
		zap.Float64("price", fill.Price),
		zap.Time("time", fill.Time),
	)

	return fill, nil
}

// filterBuy drops bars at or above limit-up and bars above the bid price.
func filterBuy(queue []types.Bar, order Order) ([]types.Bar, error) {
	belowLimit := make([]types.Bar, 0, len(queue))
	for _, bar := range queue {
		if bar.Price >= order.Limits.BuyLimit-PriceTolerance {
			continue
		}

		belowLimit = append(belowLimit, bar)
	}

	if len(queue) > 0 && len(belowLimit) == 0 {
		return nil, errors.Newf(errors.ErrCodeBuyLimitReached, "price stays at limit-up %.2f for the rest of the session", order.Limits.BuyLimit)
	}

	bid := EffectiveBid(types.PurchaseTypeBuy, order.Price, order.Limits)

	eligible := make([]types.Bar, 0, len(belowLimit))
	for _, bar := range belowLimit {
		if bar.Price > bid {
			continue
		}

		eligible = append(eligible, bar)
	}

	return eligible, nil
}

// filterSell rejects a bid placed while the price sits on limit-down, then drops
// bars at or below limit-down and bars below the bid price.
func filterSell(queue []types.Bar, order Order) ([]types.Bar, error) {
	current, ok := barAt(queue, order.BidTime)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeBadParameter, "no bar at bid time %s", order.BidTime.Format(time.DateTime))
	}

	if math.Abs(current.Price-order.Limits.SellLimit) < PriceTolerance {
		return nil, errors.Newf(errors.ErrCodeSellLimitReached, "price is at limit-down %.2f at bid time", order.Limits.SellLimit)
	}

	bid := EffectiveBid(types.PurchaseTypeSell, order.Price, order.Limits)

	eligible := make([]types.Bar, 0, len(queue))
	for _, bar := range queue {
		if bar.Price <= order.Limits.SellLimit+PriceTolerance {
			continue
		}

		if bar.Price < bid {
			continue
		}

		eligible = append(eligible, bar)
	}

	return eligible, nil
}

func barAt(queue []types.Bar, at time.Time) (types.Bar, bool) {
	minute := at.Truncate(time.Minute)
	for _, bar := range queue {
		if bar.Time.Truncate(time.Minute).Equal(minute) {
			return bar, true
		}
	}

	return types.Bar{}, false
}

// cumulativeUntil returns the cumulative volume at the first bar where it
// reaches requested, or the whole session volume when it never does.
func cumulativeUntil(queue []types.Bar, requested float64) float64 {
	cumulative := 0.0
	for _, bar := range queue {
		cumulative += bar.Volume
		if cumulative >= requested {
			break
		}
	}

	return cumulative
}

// consume takes filled shares from the queue in order. The last bar
// contributes only what is still missing.
func consume(queue []types.Bar, filled float64) Fill {
	remaining := decimal.NewFromFloat(filled)
	amount := decimal.Zero

	var last time.Time

	for _, bar := range queue {
		if !remaining.IsPositive() {
			break
		}

		if bar.Volume <= 0 {
			continue
		}

		take := decimal.Min(decimal.NewFromFloat(bar.Volume), remaining)
		amount = amount.Add(take.Mul(decimal.NewFromFloat(bar.Price)))
		remaining = remaining.Sub(take)
		last = bar.Time
	}

	price, _ := amount.Div(decimal.NewFromFloat(filled)).Float64()

	return Fill{
		Price:  price,
		Shares: filled,
		Time:   last,
	}
}
