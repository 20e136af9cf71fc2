package broker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rxtech-lab/argo-broker/internal/broker"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/feed"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/internal/version"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const (
	principal  = 100_000.0
	commission = 0.0003
)

// base price of each trading day of March 2022. The 5th and 6th are a weekend.
var basePrices = map[int]float64{1: 10.0, 2: 10.2, 3: 10.4, 4: 10.5, 7: 10.3, 8: 10.6, 9: 10.8, 10: 11.0}

func day(d int) time.Time {
	return time.Date(2022, 3, d, 0, 0, 0, 0, time.UTC)
}

func at(d int, hour int, minute int) time.Time {
	return time.Date(2022, 3, d, hour, minute, 0, 0, time.UTC)
}

// addSession adds three bars of 5000 shares: base at 9:31, base+0.02 at 9:32
// and base+0.05 at 14:59, with limits one yuan away from base.
func addSession(f *feed.InMemoryFeed, security string, d int, base float64) {
	f.AddBars(security,
		types.Bar{Time: at(d, 9, 31), Price: base, Volume: 5000},
		types.Bar{Time: at(d, 9, 32), Price: base + 0.02, Volume: 5000},
		types.Bar{Time: at(d, 14, 59), Price: base + 0.05, Volume: 5000},
	)
	f.SetPriceLimits(security, types.PriceLimits{Date: day(d), BuyLimit: base + 1, SellLimit: base - 1})
}

// newMarket returns a feed with a session of A on every trading day of basePrices.
func newMarket() *feed.InMemoryFeed {
	f := feed.NewInMemoryFeed()
	for d, base := range basePrices {
		addSession(f, "A", d, base)
	}

	return f
}

func closeOf(d int) float64 {
	return basePrices[d] + 0.05
}

var market = optional.None[float64]()

type BrokerTestSuite struct {
	suite.Suite
	ctx       context.Context
	cal       *calendar.TradingCalendar
	feed      *feed.InMemoryFeed
	registry  *prometheus.Registry
	collector *broker.Collector
	broker    *broker.Broker
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerTestSuite))
}

func (suite *BrokerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.cal = calendar.NewWeekdayCalendar()
	suite.feed = newMarket()

	suite.registry = prometheus.NewRegistry()
	suite.collector = broker.NewCollector(suite.registry)
	suite.broker = suite.newBroker(principal)
}

func (suite *BrokerTestSuite) newBroker(cash float64) *broker.Broker {
	b, err := broker.NewBroker(broker.TestConfig(day(1), day(10), cash, commission), suite.deps())
	suite.Require().NoError(err)

	return b
}

func (suite *BrokerTestSuite) deps() broker.Deps {
	return broker.Deps{
		Calendar:  suite.cal,
		Feed:      suite.feed,
		Collector: suite.collector,
	}
}

func (suite *BrokerTestSuite) cash(d int) float64 {
	cash, err := suite.broker.GetCash(suite.ctx, optional.Some(day(d)))
	suite.Require().NoError(err)

	return cash
}

func (suite *BrokerTestSuite) TestNewBrokerValidatesConfig() {
	config := broker.TestConfig(day(10), day(1), principal, commission)
	_, err := broker.NewBroker(config, suite.deps())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfig))

	config = broker.TestConfig(day(1), day(10), principal, commission)
	_, err = broker.NewBroker(config, broker.Deps{Calendar: suite.cal})
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))
}

func (suite *BrokerTestSuite) TestBuyFills() {
	result, err := suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Equal(1000.0, result.Filled)
	suite.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	suite.InDelta(10.2, trade.Price, 1e-9)
	suite.InDelta(10.2*1000*commission, trade.Fee, 1e-9)
	suite.Equal(result.Entrust.ID, trade.EntrustID)
	suite.Equal(at(2, 9, 31), trade.Time)

	suite.InDelta(principal-10_200-3.06, suite.cash(2), 1e-6)

	positions, err := suite.broker.GetPosition(suite.ctx, optional.Some(day(2)))
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal(1000.0, positions[0].Shares)
	suite.Equal(0.0, positions[0].Sellable)

	positions, err = suite.broker.GetPosition(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)
	suite.Equal(1000.0, positions[0].Sellable)

	suite.Equal(1.0, testutil.ToFloat64(suite.collectorOrders("A", "BUY")))
}

func (suite *BrokerTestSuite) collectorOrders(security string, side string) prometheus.Collector {
	families, err := suite.registry.Gather()
	suite.Require().NoError(err)
	suite.Require().NotEmpty(families)

	return broker.OrderCounter(suite.collector, suite.broker.Name(), security, side)
}

func (suite *BrokerTestSuite) TestBuyCappedByCash() {
	result, err := suite.broker.Buy(suite.ctx, "A", market, 1_000_000, at(2, 9, 31))
	suite.Require().NoError(err)

	// 100000 / (11.2 * 1.0003) is 8925 shares, 8900 in whole lots
	suite.Equal(8900.0, result.Filled)
	suite.Equal(types.OrderStatusPartial, result.Status)

	amount := 10.2*5000 + 10.22*3900
	suite.InDelta(amount/8900, result.Trades[0].Price, 1e-9)
	suite.Equal(at(2, 9, 32), result.Trades[0].Time)
	suite.InDelta(principal-amount*(1+commission), suite.cash(2), 1e-6)
}

func (suite *BrokerTestSuite) TestBuyLimitPrice() {
	result, err := suite.broker.Buy(suite.ctx, "A", optional.Some(10.21), 8000, at(2, 9, 31))
	suite.Require().NoError(err)

	// only the 9:31 bar is at or below the bid
	suite.Equal(5000.0, result.Filled)
	suite.InDelta(10.2, result.Trades[0].Price, 1e-9)
}

func (suite *BrokerTestSuite) TestBuyCashError() {
	suite.broker = suite.newBroker(1000)

	_, err := suite.broker.Buy(suite.ctx, "A", market, 100, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeCashError))
	suite.Empty(suite.broker.Trades())
	suite.Empty(suite.broker.Entrusts())
}

func (suite *BrokerTestSuite) TestBuyLimitReached() {
	suite.feed.AddBars("C",
		types.Bar{Time: at(2, 9, 31), Price: 11, Volume: 5000},
		types.Bar{Time: at(2, 9, 32), Price: 11, Volume: 5000},
	)
	suite.feed.SetPriceLimits("C", types.PriceLimits{Date: day(2), BuyLimit: 11, SellLimit: 9})

	_, err := suite.broker.Buy(suite.ctx, "C", market, 1000, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeBuyLimitReached))
	suite.Equal(principal, suite.cash(2))
}

func (suite *BrokerTestSuite) TestSellSameDayThenNextDay() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 500, at(2, 9, 31))
	suite.Require().NoError(err)

	_, err = suite.broker.Sell(suite.ctx, "A", market, 500, at(2, 14, 59))
	suite.True(errors.HasCode(err, errors.ErrCodePositionError))

	result, err := suite.broker.Sell(suite.ctx, "A", market, 500, at(3, 9, 31))
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Equal(500.0, result.Filled)

	transactions := suite.broker.Transactions()
	suite.Require().Len(transactions, 1)

	tx := transactions[0]
	suite.InDelta(10.2, tx.EntryPrice, 1e-9)
	suite.InDelta(10.4, tx.ExitPrice, 1e-9)
	suite.Equal(2, tx.HoldingDays)
	suite.InDelta(100-(10.2+10.4)*500*commission, tx.Profit, 1e-6)

	suite.InDelta(principal+tx.Profit, suite.cash(3), 1e-6)

	positions, err := suite.broker.GetPosition(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal(0.0, positions[0].Shares)

	trades := suite.broker.Trades()
	suite.Require().Len(trades, 2)
	suite.True(trades[0].Closed)
	suite.Equal(types.PurchaseTypeSell, trades[1].Side)
	suite.Equal(result.Entrust.ID, trades[1].EntrustID)
}

func (suite *BrokerTestSuite) TestSellLimitReachedLeavesAccountUnchanged() {
	suite.feed.AddBars("B",
		types.Bar{Time: at(2, 9, 31), Price: 10, Volume: 5000},
		types.Bar{Time: at(3, 9, 31), Price: 9, Volume: 5000},
		types.Bar{Time: at(3, 9, 32), Price: 9.5, Volume: 5000},
	)
	suite.feed.SetPriceLimits("B", types.PriceLimits{Date: day(2), BuyLimit: 11, SellLimit: 9})
	suite.feed.SetPriceLimits("B", types.PriceLimits{Date: day(3), BuyLimit: 11, SellLimit: 9})

	_, err := suite.broker.Buy(suite.ctx, "B", market, 500, at(2, 9, 31))
	suite.Require().NoError(err)

	cash := suite.cash(2)
	trades := suite.broker.Trades()

	_, err = suite.broker.Sell(suite.ctx, "B", market, 500, at(3, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeSellLimitReached))

	suite.Equal(cash, suite.cash(3))
	suite.Equal(trades, suite.broker.Trades())
	suite.Empty(suite.broker.Transactions())
	suite.Len(suite.broker.Entrusts(), 1)
}

func (suite *BrokerTestSuite) TestSellWithoutBarAtBidTime() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 500, at(2, 9, 31))
	suite.Require().NoError(err)

	_, err = suite.broker.Sell(suite.ctx, "A", market, 500, at(3, 10, 30))
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))
}

func (suite *BrokerTestSuite) TestSellClosesLotsOldestFirst() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 300, at(2, 9, 31))
	suite.Require().NoError(err)
	_, err = suite.broker.Buy(suite.ctx, "A", market, 200, at(3, 9, 31))
	suite.Require().NoError(err)

	result, err := suite.broker.Sell(suite.ctx, "A", market, 400, at(4, 9, 31))
	suite.Require().NoError(err)
	suite.Require().Len(result.Trades, 2)
	suite.Equal(300.0, result.Trades[0].Shares)
	suite.Equal(100.0, result.Trades[1].Shares)

	transactions := suite.broker.Transactions()
	suite.Require().Len(transactions, 2)
	suite.InDelta(10.2, transactions[0].EntryPrice, 1e-9)
	suite.Equal(3, transactions[0].HoldingDays)
	suite.InDelta(10.4, transactions[1].EntryPrice, 1e-9)
	suite.Equal(2, transactions[1].HoldingDays)

	trades := suite.broker.Trades()
	suite.True(trades[0].Closed)
	suite.False(trades[1].Closed)
	suite.Equal(100.0, trades[1].UnsoldShares)

	sellFee := 0.0
	for _, fragment := range result.Trades {
		sellFee += fragment.Fee
	}

	suite.InDelta(10.5*400*commission, sellFee, 1e-9)
}

func (suite *BrokerTestSuite) TestSellOnlyLotsBoughtBeforeBidDay() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 300, at(2, 9, 31))
	suite.Require().NoError(err)
	_, err = suite.broker.Buy(suite.ctx, "A", market, 200, at(3, 9, 31))
	suite.Require().NoError(err)

	result, err := suite.broker.Sell(suite.ctx, "A", market, 500, at(3, 14, 59))
	suite.Require().NoError(err)

	suite.Equal(300.0, result.Filled)
	suite.Equal(types.OrderStatusPartial, result.Status)

	positions, err := suite.broker.GetPosition(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)
	suite.Equal(200.0, positions[0].Shares)
	suite.Equal(0.0, positions[0].Sellable)
}

func (suite *BrokerTestSuite) TestSellExRightsShares() {
	suite.feed.SetDRFactor("A", day(2), 1.0)
	suite.feed.SetDRFactor("A", day(3), 1.2)

	_, err := suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	positions, err := suite.broker.GetPosition(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)
	suite.InDelta(1200.0, positions[0].Sellable, 1e-9)

	result, err := suite.broker.Sell(suite.ctx, "A", market, 1200, at(3, 9, 31))
	suite.Require().NoError(err)
	suite.InDelta(1200.0, result.Filled, 1e-9)

	// the lot covers 1000 shares; the 200 bonus shares have no transaction
	suite.Require().Len(result.Trades, 2)
	suite.InDelta(200.0, result.Trades[1].Shares, 1e-9)
	suite.Len(suite.broker.Transactions(), 1)

	positions, err = suite.broker.GetPosition(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)
	suite.InDelta(0.0, positions[0].Shares, 1e-9)
}

func (suite *BrokerTestSuite) TestOrderCalendarChecks() {
	tests := []struct {
		name string
		at   time.Time
		code errors.ErrorCode
	}{
		{"before window", time.Date(2022, 2, 28, 9, 31, 0, 0, time.UTC), errors.ErrCodeBadParameter},
		{"after window", at(11, 9, 31), errors.ErrCodeBadParameter},
		{"weekend", at(5, 9, 31), errors.ErrCodeBadParameter},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := suite.broker.Buy(suite.ctx, "A", market, 100, tc.at)
			suite.True(errors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (suite *BrokerTestSuite) TestOrderBadShares() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 50, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))

	_, err = suite.broker.Sell(suite.ctx, "A", market, 0, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))

	_, err = suite.broker.Buy(suite.ctx, "A", optional.Some(-1.0), 100, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))

	_, err = suite.broker.Buy(suite.ctx, "A", market, 100, time.Time{})
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))

	_, err = suite.broker.Sell(suite.ctx, "A", market, 100, time.Time{})
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))
}

func (suite *BrokerTestSuite) TestTimeRewind() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 100, at(3, 9, 32))
	suite.Require().NoError(err)

	_, err = suite.broker.Buy(suite.ctx, "A", market, 100, at(3, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeTimeRewind))

	_, err = suite.broker.Buy(suite.ctx, "A", market, 100, at(2, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeTimeRewind))

	// the same instant is not a rewind
	_, err = suite.broker.Buy(suite.ctx, "A", market, 100, at(3, 9, 32))
	suite.NoError(err)
}

func (suite *BrokerTestSuite) TestRejectedOrderDoesNotMoveClock() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 50, at(4, 9, 31))
	suite.Require().Error(err)

	_, err = suite.broker.Buy(suite.ctx, "A", market, 100, at(2, 9, 31))
	suite.NoError(err)
}

func (suite *BrokerTestSuite) TestOrderAfterLaterQuery() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	_, err = suite.broker.GetAssets(suite.ctx, optional.Some(day(9)))
	suite.Require().NoError(err)

	_, err = suite.broker.Sell(suite.ctx, "A", market, 1000, at(3, 9, 31))
	suite.Require().NoError(err)

	assets, err := suite.broker.GetAssets(suite.ctx, optional.Some(day(9)))
	suite.Require().NoError(err)
	suite.InDelta(suite.cash(9), assets, 1e-6)
}

// suspendedFeed reports no close for a security on its suspended days.
type suspendedFeed struct {
	*feed.InMemoryFeed
	suspended map[string]map[time.Time]bool
}

func (f suspendedFeed) BatchGetClosePriceInRange(ctx context.Context, securities []string, start time.Time, end time.Time) (types.DailyTable, error) {
	table, err := f.InMemoryFeed.BatchGetClosePriceInRange(ctx, securities, start, end)
	if err != nil {
		return nil, err
	}

	result := types.DailyTable{}

	for security, series := range table {
		for d, price := range series {
			if !f.suspended[security][d] {
				result.Set(security, d, price)
			}
		}
	}

	return result, nil
}

func (suite *BrokerTestSuite) TestOrderAfterLaterQueryWithSuspendedHolding() {
	for _, d := range []int{1, 2} {
		addSession(suite.feed, "B", d, 20)
	}

	for _, d := range []int{7, 8, 9, 10} {
		addSession(suite.feed, "B", d, 30)
	}

	deps := suite.deps()
	deps.Feed = suspendedFeed{
		InMemoryFeed: suite.feed,
		suspended:    map[string]map[time.Time]bool{"B": {day(3): true, day(4): true}},
	}

	b, err := broker.NewBroker(broker.TestConfig(day(1), day(10), principal, commission), deps)
	suite.Require().NoError(err)

	_, err = b.Buy(suite.ctx, "B", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	_, err = b.GetAssets(suite.ctx, optional.Some(day(9)))
	suite.Require().NoError(err)

	_, err = b.Buy(suite.ctx, "A", market, 1000, at(3, 9, 31))
	suite.Require().NoError(err)

	assets, err := b.GetAssets(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)

	cash, err := b.GetCash(suite.ctx, optional.Some(day(3)))
	suite.Require().NoError(err)

	// B is suspended on the 3rd and is valued at the close of the 2nd
	suite.InDelta(cash+1000*20.05+1000*closeOf(3), assets, 1e-6)
}

func (suite *BrokerTestSuite) TestCashAssetIdentity() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 2000, at(2, 9, 31))
	suite.Require().NoError(err)

	for _, d := range []int{2, 3, 4, 7, 8} {
		assets, err := suite.broker.GetAssets(suite.ctx, optional.Some(day(d)))
		suite.Require().NoError(err)
		suite.InDelta(suite.cash(d)+2000*closeOf(d), assets, 1e-6, "day %d", d)
	}
}

func (suite *BrokerTestSuite) TestInfo() {
	info, err := suite.broker.Info(suite.ctx, optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(day(1), info.Date)
	suite.Equal(principal, info.Assets)
	suite.Empty(info.Positions)

	_, err = suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	info, err = suite.broker.Info(suite.ctx, optional.None[time.Time]())
	suite.Require().NoError(err)

	suite.Equal("test", info.Name)
	suite.Equal(day(2), info.Date)
	suite.Equal(at(2, 9, 31), info.LastTrade)
	suite.InDelta(1000*closeOf(2), info.MarketValue, 1e-6)
	suite.InDelta(info.Available+info.MarketValue, info.Assets, 1e-6)
	suite.InDelta(info.Assets-principal, info.PnL, 1e-6)
	suite.InDelta(info.PnL/principal, info.PnLRate, 1e-12)
	suite.Require().Len(info.Positions, 1)
	suite.Equal("A", info.Positions[0].Security)
}

func (suite *BrokerTestSuite) TestStopBacktest() {
	_, err := suite.broker.Bills()
	suite.True(errors.HasCode(err, errors.ErrCodeAccountNotStopped))

	_, err = suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.broker.StopBacktest(suite.ctx))
	suite.True(suite.broker.Stopped())
	suite.True(suite.broker.Account().Stopped)

	_, err = suite.broker.Sell(suite.ctx, "A", market, 1000, at(3, 9, 31))
	suite.True(errors.HasCode(err, errors.ErrCodeAccountStopped))

	err = suite.broker.StopBacktest(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeAccountStopped))

	bills, err := suite.broker.Bills()
	suite.Require().NoError(err)
	suite.Len(bills.Entrusts, 1)
	suite.Len(bills.Trades, 1)
	suite.Empty(bills.Transactions)

	last := bills.Assets[len(bills.Assets)-1]
	suite.Equal(day(10), last.Date)
	suite.InDelta(bills.Cash[len(bills.Cash)-1].Cash+1000*closeOf(10), last.Assets, 1e-6)

	info, err := suite.broker.Info(suite.ctx, optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(day(10), info.Date)
}

func (suite *BrokerTestSuite) TestSnapshotRestore() {
	_, err := suite.broker.Buy(suite.ctx, "A", optional.Some(10.25), 1000, at(2, 9, 31))
	suite.Require().NoError(err)
	_, err = suite.broker.Sell(suite.ctx, "A", market, 400, at(3, 9, 31))
	suite.Require().NoError(err)

	data, err := suite.broker.Snapshot()
	suite.Require().NoError(err)

	restored, err := broker.Restore(data, suite.deps())
	suite.Require().NoError(err)

	suite.Equal(suite.broker.Name(), restored.Name())
	suite.Equal(suite.broker.Trades(), restored.Trades())
	suite.Equal(suite.broker.Transactions(), restored.Transactions())
	suite.Equal(suite.broker.Entrusts(), restored.Entrusts())

	want, err := suite.broker.Info(suite.ctx, optional.Some(day(4)))
	suite.Require().NoError(err)
	got, err := restored.Info(suite.ctx, optional.Some(day(4)))
	suite.Require().NoError(err)
	suite.Equal(want, got)

	// the restored account keeps the order clock and the open lot
	_, err = restored.Sell(suite.ctx, "A", market, 100, at(2, 14, 59))
	suite.True(errors.HasCode(err, errors.ErrCodeTimeRewind))

	result, err := restored.Sell(suite.ctx, "A", market, 600, at(4, 9, 31))
	suite.Require().NoError(err)
	suite.Equal(600.0, result.Filled)
	suite.Len(restored.Transactions(), 2)
}

func (suite *BrokerTestSuite) TestRestoreRejectsGarbage() {
	_, err := broker.Restore([]byte("{"), suite.deps())
	suite.True(errors.HasCode(err, errors.ErrCodeSnapshotFailed))
}

func (suite *BrokerTestSuite) TestRestoreRejectsNewerSnapshot() {
	data, err := suite.broker.Snapshot()
	suite.Require().NoError(err)

	var raw map[string]any
	suite.Require().NoError(json.Unmarshal(data, &raw))
	suite.Equal(version.GetVersion(), raw["version"])

	raw["version"] = "v99.0.0"
	data, err = json.Marshal(raw)
	suite.Require().NoError(err)

	_, err = broker.Restore(data, suite.deps())
	suite.True(errors.HasCode(err, errors.ErrCodeSnapshotFailed))
}

func (suite *BrokerTestSuite) TestMetrics() {
	_, err := suite.broker.Buy(suite.ctx, "A", market, 1000, at(2, 9, 31))
	suite.Require().NoError(err)
	_, err = suite.broker.Sell(suite.ctx, "A", market, 1000, at(4, 9, 31))
	suite.Require().NoError(err)
	suite.Require().NoError(suite.broker.StopBacktest(suite.ctx))

	metrics, err := suite.broker.Metrics(suite.ctx, optional.None[time.Time](), optional.None[time.Time](), optional.Some("A"))
	suite.Require().NoError(err)

	suite.Equal(day(1), metrics.Start)
	suite.Equal(day(10), metrics.End)
	suite.Equal(8, metrics.Window)
	suite.Equal(1, metrics.TotalTx)
	suite.Equal(1.0, metrics.WinRate)
	suite.Equal(3, metrics.MaxHoldingDays)

	assets, err := suite.broker.GetAssets(suite.ctx, optional.Some(day(10)))
	suite.Require().NoError(err)
	suite.InDelta(assets/principal-1, metrics.TotalProfitRate, 1e-9)
	suite.InDelta(metrics.TotalProfit, assets-principal, 1e-6)
	suite.LessOrEqual(metrics.MaxDrawdown, 0.0)

	suite.Require().NotNil(metrics.Baseline)
	suite.Equal("A", metrics.Baseline.Security)
	// A has no close before the 1st, so its series starts on the 1st
	suite.InDelta(closeOf(10)/closeOf(1)-1, metrics.Baseline.TotalProfitRate, 1e-9)
}

func (suite *BrokerTestSuite) TestMetricsBadWindow() {
	_, err := suite.broker.Metrics(suite.ctx, optional.Some(day(8)), optional.Some(day(2)), optional.None[string]())
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))
}

func (suite *BrokerTestSuite) TestCollectorCountsRejections() {
	_, err := suite.broker.Sell(suite.ctx, "A", market, 100, at(2, 9, 31))
	suite.Require().Error(err)

	counter := broker.RejectCounter(suite.collector, suite.broker.Name(), "SELL", "position_error")
	suite.Equal(1.0, testutil.ToFloat64(counter))
}
