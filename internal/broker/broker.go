// Package broker simulates a brokerage account against historical minute bars.
//
// A Broker owns one account: its ledgers, entrusts, trades and transactions.
// Orders must arrive in chronological order and are matched against the
// liquidity left in the session after the bid time. Buys are sized in lots of
// 100 shares and become sellable on the next trading day. Once stopped, an
// account only answers queries.
package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/feed"
	"github.com/rxtech-lab/argo-broker/internal/ledger"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/matching"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/internal/utils"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deps are the collaborators injected into a Broker.
type Deps struct {
	Calendar calendar.Calendar
	Feed     feed.Feed
	// Logger is optional.
	Logger *logger.Logger
	// Collector is optional.
	Collector *Collector
}

type Broker struct {
	mu sync.Mutex

	config     Config
	cal        calendar.Calendar
	feed       feed.Feed
	engine     *matching.Engine
	commission commission_fee.CommissionFee
	ledger     *ledger.Ledger
	logger     *logger.Logger
	collector  *Collector

	entrusts     []types.Entrust
	trades       map[string]*types.Trade
	tradeOrder   []string
	transactions []types.Transaction
	lastTrade    time.Time
	stopped      bool
}

// NewBroker opens an account holding the configured principal in cash.
func NewBroker(config Config, deps Deps) (*Broker, error) {
	b, err := newBroker(config, deps)
	if err != nil {
		return nil, err
	}

	b.ledger = ledger.New(config.Principal, config.Start, b.cal, b.feed, b.logger)

	b.logger.Info("Account opened",
		zap.Float64("principal", config.Principal),
		zap.Time("start", config.Start),
		zap.Time("end", config.End),
	)

	return b, nil
}

func newBroker(config Config, deps Deps) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if deps.Calendar == nil || deps.Feed == nil {
		return nil, errors.New(errors.ErrCodeBadParameter, "broker needs a calendar and a feed")
	}

	log := deps.Logger.ForAccount(config.Name)

	return &Broker{
		config:     config,
		cal:        deps.Calendar,
		feed:       deps.Feed,
		engine:     matching.NewEngine(log),
		commission: config.commissionFee(),
		logger:     log,
		collector:  deps.Collector,
		trades:     map[string]*types.Trade{},
	}, nil
}

func (b *Broker) Name() string {
	return b.config.Name
}

func (b *Broker) Config() Config {
	return b.config
}

// Account returns the static description of the account.
func (b *Broker) Account() types.Account {
	b.mu.Lock()
	defer b.mu.Unlock()

	return types.Account{
		Name:       b.config.Name,
		Principal:  b.config.Principal,
		Commission: b.config.Commission,
		Start:      b.config.Start,
		End:        b.config.End,
		Stopped:    b.stopped,
	}
}

// Buy buys shares of security at or below price, or at any price up to the
// limit-up price when price is None. The request is capped by the cash
// available on the bid day and the fill is rounded down to whole lots.
func (b *Broker) Buy(ctx context.Context, security string, price optional.Option[float64], shares float64, bidTime time.Time) (types.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entrust := types.NewEntrust(security, types.PurchaseTypeBuy, shares, price, bidTime)

	result, err := b.buy(ctx, entrust)
	if err != nil {
		b.reject(entrust, err)

		return types.OrderResult{}, err
	}

	b.accept(result, nil)

	return result, nil
}

// Sell sells up to shares of security at or above price, or at any price down
// to the limit-down price when price is None. Only shares bought before the bid
// day are sellable; open buy lots are closed oldest first.
func (b *Broker) Sell(ctx context.Context, security string, price optional.Option[float64], shares float64, bidTime time.Time) (types.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entrust := types.NewEntrust(security, types.PurchaseTypeSell, shares, price, bidTime)

	result, transactions, err := b.sell(ctx, entrust)
	if err != nil {
		b.reject(entrust, err)

		return types.OrderResult{}, err
	}

	b.accept(result, transactions)

	return result, nil
}

func (b *Broker) buy(ctx context.Context, entrust types.Entrust) (types.OrderResult, error) {
	if err := b.checkOrder(entrust); err != nil {
		return types.OrderResult{}, err
	}

	day := calendar.Date(entrust.BidTime)
	if err := b.prepare(ctx, day); err != nil {
		return types.OrderResult{}, err
	}

	limits, bars, err := b.session(ctx, entrust.Security, entrust.BidTime)
	if err != nil {
		return types.OrderResult{}, err
	}

	bid := matching.EffectiveBid(types.PurchaseTypeBuy, entrust.BidPrice, limits)
	if bid <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeBadParameter, "invalid bid price %f for %s", bid, entrust.Security)
	}

	cash := b.ledger.Cash(day)

	affordable := b.affordable(cash, bid)
	if affordable < matching.LotSize {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeCashError,
			"cash %.2f cannot afford one lot of %s at %.4f", cash, entrust.Security, bid)
	}

	fill, err := b.engine.Match(bars, matching.Order{
		Side:    types.PurchaseTypeBuy,
		Shares:  min(entrust.BidShares, affordable),
		Price:   entrust.BidPrice,
		BidTime: entrust.BidTime,
		Limits:  limits,
	})
	if err != nil {
		return types.OrderResult{}, err
	}

	fee := b.commission.Calculate(fill.Price, fill.Shares)
	trade := types.NewTrade(entrust.ID, entrust.Security, fill.Price, fill.Shares, fee, types.PurchaseTypeBuy, fill.Time)

	if err := b.ledger.UpdatePosition(ctx, trade); err != nil {
		return types.OrderResult{}, err
	}

	cost := decimal.NewFromFloat(trade.Amount()).Add(decimal.NewFromFloat(fee))
	if err := b.ledger.ApplyCashDelta(day, cost.Neg().InexactFloat64()); err != nil {
		return types.OrderResult{}, err
	}

	b.trades[trade.TradeID] = &trade
	b.tradeOrder = append(b.tradeOrder, trade.TradeID)

	b.settle(ctx, day)

	return types.NewOrderResult(entrust, []types.Trade{trade}), nil
}

// affordable returns the whole lots cash can pay for at bid, commission included.
func (b *Broker) affordable(cash float64, bid float64) float64 {
	return utils.MaxAffordableQuantity(cash, bid, b.commission.Rate(), matching.LotSize)
}

func (b *Broker) sell(ctx context.Context, entrust types.Entrust) (types.OrderResult, []types.Transaction, error) {
	if err := b.checkOrder(entrust); err != nil {
		return types.OrderResult{}, nil, err
	}

	day := calendar.Date(entrust.BidTime)
	if err := b.prepare(ctx, day); err != nil {
		return types.OrderResult{}, nil, err
	}

	position := b.ledger.Position(day)[entrust.Security]

	sellable := min(entrust.BidShares, position.Sellable)
	if sellable < types.ClosedEpsilon {
		return types.OrderResult{}, nil, errors.Newf(errors.ErrCodePositionError,
			"no sellable shares of %s on %s", entrust.Security, day.Format(time.DateOnly))
	}

	limits, bars, err := b.session(ctx, entrust.Security, entrust.BidTime)
	if err != nil {
		return types.OrderResult{}, nil, err
	}

	fill, err := b.engine.Match(bars, matching.Order{
		Side:    types.PurchaseTypeSell,
		Shares:  sellable,
		Price:   entrust.BidPrice,
		BidTime: entrust.BidTime,
		Limits:  limits,
	})
	if err != nil {
		return types.OrderResult{}, nil, err
	}

	fee := b.commission.Calculate(fill.Price, fill.Shares)

	closed, fragments, transactions, err := b.closeLots(entrust, day, fill, fee)
	if err != nil {
		return types.OrderResult{}, nil, err
	}

	total := types.Trade{
		EntrustID: entrust.ID,
		Security:  entrust.Security,
		Price:     fill.Price,
		Shares:    fill.Shares,
		Side:      types.PurchaseTypeSell,
		Time:      fill.Time,
	}
	if err := b.ledger.UpdatePosition(ctx, total); err != nil {
		return types.OrderResult{}, nil, err
	}

	credit := decimal.Zero
	for _, fragment := range fragments {
		credit = credit.Add(decimal.NewFromFloat(fragment.Amount())).Sub(decimal.NewFromFloat(fragment.Fee))
	}

	if err := b.ledger.ApplyCashDelta(day, credit.InexactFloat64()); err != nil {
		return types.OrderResult{}, nil, err
	}

	for _, lot := range closed {
		*b.trades[lot.TradeID] = lot
	}

	for i := range fragments {
		b.trades[fragments[i].TradeID] = &fragments[i]
		b.tradeOrder = append(b.tradeOrder, fragments[i].TradeID)
	}

	b.settle(ctx, day)

	return types.NewOrderResult(entrust, fragments), transactions, nil
}

// closeLots walks the open buy lots of the security bought before day, oldest
// first, and closes them against fill. Lots are closed on copies; the caller
// commits them. Shares no lot accounts for, such as those added by an
// ex-rights adjustment, are sold in a fragment without a transaction.
func (b *Broker) closeLots(entrust types.Entrust, day time.Time, fill matching.Fill, fee float64) ([]types.Trade, []types.Trade, []types.Transaction, error) {
	var (
		closed       []types.Trade
		fragments    []types.Trade
		transactions []types.Transaction
	)

	remaining := fill.Shares
	remainingFee := fee

	for _, lot := range b.openLots(entrust.Security, day) {
		if remaining < types.ClosedEpsilon {
			break
		}

		updated := *lot

		result, err := updated.Sell(entrust.ID, remaining, fill.Price, remainingFee, fill.Time)
		if err != nil {
			return nil, nil, nil, err
		}

		holding := b.cal.Count(calendar.Date(updated.Time), day)

		closed = append(closed, updated)
		fragments = append(fragments, result.Fragment)
		transactions = append(transactions, result.Transaction.WithHoldingDays(holding))

		remaining = result.Remaining
		remainingFee = result.RemainingFee
	}

	if remaining >= types.ClosedEpsilon {
		b.logger.Warn("Sold shares without an open lot",
			zap.String("security", entrust.Security),
			zap.Float64("shares", remaining),
		)

		fragments = append(fragments, types.NewTrade(entrust.ID, entrust.Security, fill.Price, remaining, remainingFee,
			types.PurchaseTypeSell, fill.Time))
	}

	return closed, fragments, transactions, nil
}

// openLots returns the open buy trades of security made before day, oldest first.
func (b *Broker) openLots(security string, day time.Time) []*types.Trade {
	var lots []*types.Trade

	for _, id := range b.tradeOrder {
		trade := b.trades[id]
		if trade.Side != types.PurchaseTypeBuy || trade.Closed || trade.Security != security {
			continue
		}

		if !calendar.Date(trade.Time).Before(day) {
			continue
		}

		lots = append(lots, trade)
	}

	sort.SliceStable(lots, func(i, j int) bool { return lots[i].Time.Before(lots[j].Time) })

	return lots
}

func (b *Broker) checkOrder(entrust types.Entrust) error {
	if b.stopped {
		return errors.Newf(errors.ErrCodeAccountStopped, "account %s is stopped", b.config.Name)
	}

	if err := entrust.Validate(); err != nil {
		return err
	}

	if entrust.Side == types.PurchaseTypeBuy && entrust.BidShares < matching.LotSize {
		return errors.Newf(errors.ErrCodeBadParameter, "buy at least %d shares, got %f", matching.LotSize, entrust.BidShares)
	}

	day := calendar.Date(entrust.BidTime)
	if day.Before(calendar.Date(b.config.Start)) || day.After(calendar.Date(b.config.End)) {
		return errors.Newf(errors.ErrCodeBadParameter, "bid time %s is outside the backtest window %s to %s",
			entrust.BidTime.Format(time.DateTime), b.config.Start.Format(time.DateOnly), b.config.End.Format(time.DateOnly))
	}

	if !b.cal.IsTradingDay(day) {
		return errors.Newf(errors.ErrCodeBadParameter, "%s is not a trading day", day.Format(time.DateOnly))
	}

	if entrust.BidTime.Before(b.lastTrade) {
		return errors.Newf(errors.ErrCodeTimeRewind, "bid time %s is before the last order at %s",
			entrust.BidTime.Format(time.DateTime), b.lastTrade.Format(time.DateTime))
	}

	return nil
}

// prepare brings the ledgers to day: rows forwarded past it by earlier queries
// are dropped and every table is forwarded up to it.
func (b *Broker) prepare(ctx context.Context, day time.Time) error {
	b.ledger.Rewind(day)

	return b.ledger.ForwardAssets(ctx, day)
}

// settle revalues the assets of day after a fill. A valuation failure does not
// undo the fill; the rows stay invalidated and are retried by the next forward.
func (b *Broker) settle(ctx context.Context, day time.Time) {
	if err := b.ledger.ForwardAssets(ctx, day); err != nil {
		b.logger.Warn("Failed to value assets after fill",
			zap.Time("day", day),
			zap.Error(err),
		)
	}
}

func (b *Broker) session(ctx context.Context, security string, bidTime time.Time) (types.PriceLimits, []types.Bar, error) {
	limits, err := b.feed.GetTradePriceLimits(ctx, security, calendar.Date(bidTime))
	if err != nil {
		return types.PriceLimits{}, nil, feedError(err, "failed to get price limits")
	}

	bars, err := b.feed.GetPriceForMatch(ctx, security, bidTime)
	if err != nil {
		return types.PriceLimits{}, nil, feedError(err, "failed to get liquidity queue")
	}

	return limits, bars, nil
}

func feedError(err error, message string) error {
	if errors.GetCode(err) != errors.ErrCodeUnknown {
		return err
	}

	return errors.Wrap(errors.ErrCodeFeedFailed, message, err)
}

func (b *Broker) accept(result types.OrderResult, transactions []types.Transaction) {
	b.entrusts = append(b.entrusts, result.Entrust)
	b.transactions = append(b.transactions, transactions...)
	b.lastTrade = result.Entrust.BidTime

	b.collector.recordOrder(b.config.Name, result)

	b.logger.Debug("Order filled",
		zap.String("entrust_id", result.Entrust.ID),
		zap.String("security", result.Entrust.Security),
		zap.String("side", string(result.Entrust.Side)),
		zap.Float64("requested", result.Entrust.BidShares),
		zap.Float64("filled", result.Filled),
		zap.String("status", string(result.Status)),
	)
}

func (b *Broker) reject(entrust types.Entrust, err error) {
	b.collector.recordReject(b.config.Name, entrust.Side, err)

	b.logger.Warn("Order rejected",
		zap.String("security", entrust.Security),
		zap.String("side", string(entrust.Side)),
		zap.Float64("shares", entrust.BidShares),
		zap.Time("bid_time", entrust.BidTime),
		zap.Error(err),
	)
}

// StopBacktest values the account up to the end of the window and stops it.
func (b *Broker) StopBacktest(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return errors.Newf(errors.ErrCodeAccountStopped, "account %s is already stopped", b.config.Name)
	}

	end := calendar.Date(b.config.End)
	if err := b.ledger.ForwardAssets(ctx, end); err != nil {
		return err
	}

	b.stopped = true

	b.logger.Info("Backtest stopped",
		zap.Float64("assets", b.ledger.Assets(end)),
		zap.Int("trades", len(b.tradeOrder)),
		zap.Int("transactions", len(b.transactions)),
	)

	return nil
}

func (b *Broker) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stopped
}

// queryDay is the day a query without a date refers to: the end of the window
// once stopped, otherwise the day of the last order or the first day.
func (b *Broker) queryDay(date optional.Option[time.Time]) time.Time {
	if date.IsSome() {
		return calendar.Date(date.Unwrap())
	}

	if b.stopped {
		return calendar.Date(b.config.End)
	}

	if !b.lastTrade.IsZero() {
		return calendar.Date(b.lastTrade)
	}

	return calendar.Date(b.config.Start)
}

// GetCash returns the cash as of date.
func (b *Broker) GetCash(ctx context.Context, date optional.Option[time.Time]) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.queryDay(date)
	b.ledger.ForwardCash(day)

	return b.ledger.Cash(day), nil
}

// GetPosition returns the holdings as of date ordered by security.
func (b *Broker) GetPosition(ctx context.Context, date optional.Option[time.Time]) ([]types.PositionEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.queryDay(date)
	if err := b.ledger.ForwardPositions(ctx, day); err != nil {
		return nil, err
	}

	return sortedPositions(b.ledger.Position(day)), nil
}

// GetAssets returns cash plus market value as of date.
func (b *Broker) GetAssets(ctx context.Context, date optional.Option[time.Time]) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.queryDay(date)
	if err := b.ledger.ForwardAssets(ctx, day); err != nil {
		return 0, err
	}

	return b.ledger.Assets(day), nil
}

// Info summarizes the account as of date.
func (b *Broker) Info(ctx context.Context, date optional.Option[time.Time]) (types.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.queryDay(date)
	if err := b.ledger.ForwardAssets(ctx, day); err != nil {
		return types.AccountInfo{}, err
	}

	cash := decimal.NewFromFloat(b.ledger.Cash(day))
	assets := decimal.NewFromFloat(b.ledger.Assets(day))
	principal := decimal.NewFromFloat(b.config.Principal)
	pnl := assets.Sub(principal)

	return types.AccountInfo{
		Name:        b.config.Name,
		Principal:   b.config.Principal,
		Start:       b.config.Start,
		End:         b.config.End,
		Stopped:     b.stopped,
		LastTrade:   b.lastTrade,
		Date:        day,
		Assets:      assets.InexactFloat64(),
		Available:   cash.InexactFloat64(),
		MarketValue: assets.Sub(cash).InexactFloat64(),
		PnL:         pnl.InexactFloat64(),
		PnLRate:     pnl.Div(principal).InexactFloat64(),
		Positions:   sortedPositions(b.ledger.Position(day)),
	}, nil
}

func sortedPositions(positions map[string]types.PositionEntry) []types.PositionEntry {
	entries := make([]types.PositionEntry, 0, len(positions))
	for _, entry := range positions {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Security < entries[j].Security })

	return entries
}

// Entrusts returns the accepted orders in submission order.
func (b *Broker) Entrusts() []types.Entrust {
	b.mu.Lock()
	defer b.mu.Unlock()

	entrusts := make([]types.Entrust, len(b.entrusts))
	copy(entrusts, b.entrusts)

	return entrusts
}

// Trades returns buy trades and sell fragments in the order they were made.
func (b *Broker) Trades() []types.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tradeList()
}

func (b *Broker) tradeList() []types.Trade {
	trades := make([]types.Trade, 0, len(b.tradeOrder))
	for _, id := range b.tradeOrder {
		trades = append(trades, *b.trades[id])
	}

	return trades
}

func (b *Broker) Transactions() []types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	transactions := make([]types.Transaction, len(b.transactions))
	copy(transactions, b.transactions)

	return transactions
}

// Bills returns the full record of a stopped account.
func (b *Broker) Bills() (types.Bills, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.stopped {
		return types.Bills{}, errors.Newf(errors.ErrCodeAccountNotStopped, "account %s is still running", b.config.Name)
	}

	entrusts := make([]types.Entrust, len(b.entrusts))
	copy(entrusts, b.entrusts)

	transactions := make([]types.Transaction, len(b.transactions))
	copy(transactions, b.transactions)

	return types.Bills{
		Entrusts:     entrusts,
		Trades:       b.tradeList(),
		Transactions: transactions,
		Positions:    b.ledger.PositionRows(),
		Assets:       b.ledger.AllAssetRows(),
		Cash:         b.ledger.CashRows(),
	}, nil
}
