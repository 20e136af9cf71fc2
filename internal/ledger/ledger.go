// Package ledger keeps the day-indexed cash, position and asset tables of one account.
//
// Every table starts with a baseline row on the trading day before the account
// start. Tables are sparse until forwarded: a forward fills every trading day
// between the last row and the target day. Forwarding is idempotent.
package ledger

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/feed"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is not safe for concurrent use; the owning broker serializes access.
type Ledger struct {
	principal float64
	base      time.Time
	cal       calendar.Calendar
	feed      feed.Feed
	logger    *logger.Logger

	cash      *CashTable
	positions *PositionTable
	assets    *AssetTable
	lastClose map[string]CloseMark
}

// State is the serializable content of a ledger.
type State struct {
	Cash      []types.CashRow     `json:"cash"`
	Positions []types.PositionRow `json:"positions"`
	Assets    []types.AssetRow    `json:"assets"`
	LastClose map[string]CloseMark `json:"last_close"`
}

// New creates a ledger holding principal in cash from the trading day before start.
func New(principal float64, start time.Time, cal calendar.Calendar, f feed.Feed, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNopLogger()
	}

	base := cal.DayShift(calendar.Date(start), -1)

	return &Ledger{
		principal: principal,
		base:      base,
		cal:       cal,
		feed:      f,
		logger:    log,
		cash:      NewCashTable(types.CashRow{Date: base, Cash: principal}),
		positions: NewPositionTable(types.PositionRow{Date: base}),
		assets:    NewAssetTable(types.AssetRow{Date: base, Assets: principal}),
		lastClose: map[string]CloseMark{},
	}
}

// Restore creates a ledger from a saved state.
func Restore(principal float64, start time.Time, cal calendar.Calendar, f feed.Feed, log *logger.Logger, state State) *Ledger {
	l := New(principal, start, cal, f, log)

	for _, row := range state.Cash {
		l.cash.Set(row)
	}

	byDay := map[time.Time][]types.PositionRow{}
	for _, row := range state.Positions {
		byDay[row.Date] = append(byDay[row.Date], row)
	}

	for day, rows := range byDay {
		l.positions.SetDay(day, rows)
	}

	for _, row := range state.Assets {
		l.assets.Set(row)
	}

	for security, mark := range state.LastClose {
		l.lastClose[security] = mark
	}

	return l
}

// State returns a copy of the ledger tables.
func (l *Ledger) State() State {
	lastClose := make(map[string]CloseMark, len(l.lastClose))
	for security, mark := range l.lastClose {
		lastClose[security] = mark
	}

	return State{
		Cash:      l.cash.Rows(),
		Positions: l.positions.Rows(),
		Assets:    l.assets.Rows(),
		LastClose: lastClose,
	}
}

// Base is the baseline day before the account start.
func (l *Ledger) Base() time.Time {
	return l.base
}

func (l *Ledger) Principal() float64 {
	return l.principal
}

// Cash returns the cash as of day, the principal before the first row.
func (l *Ledger) Cash(day time.Time) float64 {
	row, ok := l.cash.AsOf(calendar.Date(day))
	if !ok {
		return l.principal
	}

	return row.Cash
}

// ApplyCashDelta adds delta to the cash of day, forwarding the table first.
func (l *Ledger) ApplyCashDelta(day time.Time, delta float64) error {
	day = calendar.Date(day)

	last, _ := l.cash.Last()
	if day.Before(last.Date) {
		return errors.Newf(errors.ErrCodeBadParameter, "cannot change cash on %s before the last recorded day %s",
			day.Format(time.DateOnly), last.Date.Format(time.DateOnly))
	}

	l.ForwardCash(day)

	current := l.Cash(day)
	updated, _ := decimal.NewFromFloat(current).Add(decimal.NewFromFloat(delta)).Float64()
	l.cash.Set(types.CashRow{Date: day, Cash: updated})

	l.invalidateAssets(day)

	return nil
}

// ForwardCash fills every trading day up to and including to.
func (l *Ledger) ForwardCash(to time.Time) {
	last, _ := l.cash.Last()
	ForwardCash(l.cash, l.cal.TradingDays(last.Date.AddDate(0, 0, 1), calendar.Date(to)))
}

// Position returns the holdings as of day. A day past the last recorded one
// reports every share as sellable.
func (l *Ledger) Position(day time.Time) map[string]types.PositionEntry {
	day = calendar.Date(day)
	result := map[string]types.PositionEntry{}

	recorded, rows, ok := l.positions.AsOf(day)
	if !ok {
		return result
	}

	for _, row := range rows {
		if row.IsSentinel() {
			continue
		}

		sellable := row.Sellable
		if day.After(recorded) {
			sellable = row.Shares
		}

		result[row.Security] = types.PositionEntry{
			Security: row.Security,
			Shares:   row.Shares,
			Sellable: sellable,
			Price:    row.Price,
		}
	}

	return result
}

// UpdatePosition applies a buy trade or a sell fragment on the day of the trade.
// Shares bought become sellable on the next trading day.
func (l *Ledger) UpdatePosition(ctx context.Context, trade types.Trade) error {
	day := calendar.Date(trade.Time)

	last, _ := l.positions.LastDate()
	if day.Before(last) {
		return errors.Newf(errors.ErrCodeBadParameter, "cannot change positions on %s before the last recorded day %s",
			day.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	if err := l.ForwardPositions(ctx, day); err != nil {
		return err
	}

	_, current, _ := l.positions.AsOf(day)

	rows := make([]types.PositionRow, 0, len(current)+1)
	found := false

	for _, row := range current {
		if row.IsSentinel() {
			continue
		}

		if row.Security == trade.Security {
			row = applyTrade(row, trade)
			found = true
		}

		rows = append(rows, row)
	}

	if !found {
		if trade.Side == types.PurchaseTypeSell {
			return errors.Newf(errors.ErrCodePositionError, "no position in %s to sell", trade.Security)
		}

		rows = append(rows, applyTrade(types.PositionRow{Date: day, Security: trade.Security}, trade))
	}

	l.positions.SetDay(day, rows)
	l.invalidateAssets(day)

	return nil
}

func applyTrade(row types.PositionRow, trade types.Trade) types.PositionRow {
	shares := decimal.NewFromFloat(row.Shares)
	quantity := decimal.NewFromFloat(trade.Shares)

	switch trade.Side {
	case types.PurchaseTypeBuy:
		total := shares.Add(quantity)
		cost := shares.Mul(decimal.NewFromFloat(row.Price)).Add(quantity.Mul(decimal.NewFromFloat(trade.Price)))

		row.Shares, _ = total.Float64()
		if total.IsPositive() {
			row.Price, _ = cost.Div(total).Float64()
		}
	case types.PurchaseTypeSell:
		row.Shares, _ = shares.Sub(quantity).Float64()
		row.Sellable, _ = decimal.NewFromFloat(row.Sellable).Sub(quantity).Float64()

		if row.Shares < types.ClosedEpsilon {
			row.Shares = 0
		}

		if row.Sellable < types.ClosedEpsilon {
			row.Sellable = 0
		}
	}

	return row
}

// ForwardPositions fills every trading day up to and including to, applying the
// ex-rights factors of the securities still held.
func (l *Ledger) ForwardPositions(ctx context.Context, to time.Time) error {
	source, _ := l.positions.LastDate()

	days := l.cal.TradingDays(source.AddDate(0, 0, 1), calendar.Date(to))
	if len(days) == 0 {
		return nil
	}

	held := HeldRows(l.positions.Day(source))

	factors := types.DailyTable{}

	if len(held) > 0 {
		securities := make([]string, 0, len(held))
		for _, row := range held {
			securities = append(securities, row.Security)
		}

		var err error

		factors, err = l.feed.GetDRFactor(ctx, securities, append([]time.Time{source}, days...), true)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFeedFailed, "failed to get ex-rights factors", err)
		}
	}

	ForwardPositions(l.positions, days, factors)

	return nil
}

// ForwardAssets forwards cash and positions to to and values every new day.
func (l *Ledger) ForwardAssets(ctx context.Context, to time.Time) error {
	to = calendar.Date(to)

	l.ForwardCash(to)

	if err := l.ForwardPositions(ctx, to); err != nil {
		return err
	}

	last, _ := l.assets.Last()

	days := l.cal.TradingDays(last.Date.AddDate(0, 0, 1), to)
	if len(days) == 0 {
		return nil
	}

	values, err := l.marketValues(ctx, days)
	if err != nil {
		return err
	}

	for _, day := range days {
		total, _ := decimal.NewFromFloat(l.Cash(day)).Add(decimal.NewFromFloat(values[day])).Float64()
		l.assets.Set(types.AssetRow{Date: day, Assets: total})
	}

	return nil
}

// QueryMarketValues returns the market value of the holdings on every trading day in [start, end].
func (l *Ledger) QueryMarketValues(ctx context.Context, start time.Time, end time.Time) (types.DailySeries, error) {
	days := l.cal.TradingDays(calendar.Date(start), calendar.Date(end))
	if len(days) == 0 {
		return types.DailySeries{}, nil
	}

	return l.marketValues(ctx, days)
}

func (l *Ledger) marketValues(ctx context.Context, days []time.Time) (types.DailySeries, error) {
	securities := l.heldBetween(days[0], days[len(days)-1])
	if len(securities) == 0 {
		values := types.DailySeries{}
		for _, day := range days {
			values[day] = 0
		}

		return values, nil
	}

	closes, err := l.feed.BatchGetClosePriceInRange(ctx, securities, days[0], days[len(days)-1])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to get close prices", err)
	}

	l.dropMarksFrom(days[0])

	if err := l.seedLastClose(ctx, securities, days[0]); err != nil {
		return nil, err
	}

	values, missing := MarketValues(l.positions, days, closes, l.lastClose)
	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataMissing, "no close price known for %v", missing)
	}

	return values, nil
}

// seedLastClose fetches the close before day for held securities without a mark.
func (l *Ledger) seedLastClose(ctx context.Context, securities []string, day time.Time) error {
	var unknown []string

	for _, security := range securities {
		if _, ok := l.lastClose[security]; !ok {
			unknown = append(unknown, security)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	prev := l.cal.DayShift(day, -1)

	closes, err := l.feed.GetClosePrice(ctx, unknown, prev)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeedFailed, "failed to get close prices", err)
	}

	for _, security := range unknown {
		price, ok := closes[security]
		if !ok {
			l.logger.Warn("No close price before valuation window",
				zap.String("security", security),
				zap.Time("day", day),
			)

			continue
		}

		l.lastClose[security] = CloseMark{Date: prev, Price: price}
	}

	return nil
}

// dropMarksFrom forgets the closes seen on or after day. Valuing a day again
// after a rewind must not fall back to a close from a later session.
func (l *Ledger) dropMarksFrom(day time.Time) {
	for security, mark := range l.lastClose {
		if !mark.Date.Before(day) {
			delete(l.lastClose, security)
		}
	}
}

// heldBetween returns the securities with shares on any day in [start, end].
func (l *Ledger) heldBetween(start time.Time, end time.Time) []string {
	seen := map[string]struct{}{}

	var securities []string

	collect := func(rows []types.PositionRow) {
		for _, row := range HeldRows(rows) {
			if _, ok := seen[row.Security]; ok {
				continue
			}

			seen[row.Security] = struct{}{}
			securities = append(securities, row.Security)
		}
	}

	_, rows, _ := l.positions.AsOf(start)
	collect(rows)

	for _, day := range l.cal.TradingDays(start, end) {
		collect(l.positions.Day(day))
	}

	return securities
}

// Assets returns the total assets as of day, the principal before the first row.
func (l *Ledger) Assets(day time.Time) float64 {
	row, ok := l.assets.AsOf(calendar.Date(day))
	if !ok {
		return l.principal
	}

	return row.Assets
}

// AssetRows returns the asset rows in [start, end].
func (l *Ledger) AssetRows(start time.Time, end time.Time) []types.AssetRow {
	return l.assets.Range(calendar.Date(start), calendar.Date(end))
}

func (l *Ledger) CashRows() []types.CashRow {
	return l.cash.Rows()
}

func (l *Ledger) PositionRows() []types.PositionRow {
	return l.positions.Rows()
}

func (l *Ledger) AllAssetRows() []types.AssetRow {
	return l.assets.Rows()
}

// Rewind drops the cash and position rows after day and the asset rows from
// day on. Rows past the last mutation are only forward fills, so callers must
// not rewind before the day of the last applied trade or cash delta.
func (l *Ledger) Rewind(day time.Time) {
	day = calendar.Date(day)
	if day.Before(l.base) {
		day = l.base
	}

	next := day.AddDate(0, 0, 1)
	cash := l.cash.TruncateFrom(next)
	positions := l.positions.TruncateFrom(next)

	l.invalidateAssets(day)

	if cash > 0 || positions > 0 {
		l.logger.Debug("Rewound forwarded rows",
			zap.Time("day", day),
			zap.Int("cash_rows", cash),
			zap.Int("position_rows", positions),
		)
	}
}

// invalidateAssets drops the asset rows from day on so the next forward revalues them.
func (l *Ledger) invalidateAssets(day time.Time) {
	if !day.After(l.base) {
		return
	}

	if n := l.assets.TruncateFrom(day); n > 0 {
		l.logger.Debug("Invalidated asset rows", zap.Time("from", day), zap.Int("rows", n))
	}
}
