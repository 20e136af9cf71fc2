package broker

import (
	"context"
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

// Metrics computes the performance of the account over [start, end]. Missing
// bounds default to the first day of the window and the query day. baseline
// overrides the configured baseline security.
func (b *Broker) Metrics(ctx context.Context, start optional.Option[time.Time], end optional.Option[time.Time], baseline optional.Option[string]) (types.Metrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := calendar.Date(start.TakeOr(b.config.Start))
	to := b.queryDay(end)

	if to.Before(from) {
		return types.Metrics{}, errors.Newf(errors.ErrCodeBadParameter, "metrics end %s is before start %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	if err := b.ledger.ForwardAssets(ctx, to); err != nil {
		return types.Metrics{}, err
	}

	rf := b.config.riskFreeRate()
	annual := b.config.annualTradingDays()

	rows := b.ledger.AssetRows(b.cal.DayShift(from, -1), to)
	values := make([]float64, 0, len(rows))

	for _, row := range rows {
		values = append(values, row.Assets)
	}

	returns := dailyReturns(values)

	metrics := types.Metrics{
		Start:         from,
		End:           to,
		Window:        len(returns),
		ReturnMetrics: returnMetrics(returns, rf, annual),
	}

	stats := transactionStats(b.transactions, from, to)
	metrics.TotalTx = stats.count
	metrics.TotalProfit = stats.profit
	metrics.WinRate = stats.winRate
	metrics.MaxHoldingDays = stats.maxHolding
	metrics.MeanHoldingDays = stats.meanHolding

	security := b.config.Baseline
	if baseline.IsSome() {
		security = baseline
	}

	if security.IsSome() {
		measures, err := b.baselineMetrics(ctx, security.Unwrap(), from, to, rf, annual)
		if err != nil {
			return types.Metrics{}, err
		}

		metrics.Baseline = &types.BaselineMetrics{
			Security:      security.Unwrap(),
			ReturnMetrics: measures,
		}
	}

	return metrics, nil
}

func (b *Broker) baselineMetrics(ctx context.Context, security string, from time.Time, to time.Time, rf float64, annual int) (types.ReturnMetrics, error) {
	prev := b.cal.DayShift(from, -1)

	closes, err := b.feed.BatchGetClosePriceInRange(ctx, []string{security}, prev, to)
	if err != nil {
		return types.ReturnMetrics{}, feedError(err, "failed to get baseline close prices")
	}

	series := closes[security]
	values := make([]float64, 0, len(series))

	for _, day := range b.cal.TradingDays(prev, to) {
		if price, ok := series[day]; ok {
			values = append(values, price)
		}
	}

	return returnMetrics(dailyReturns(values), rf, annual), nil
}

// dailyReturns returns the simple return of each value over the previous one.
func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(values)-1)

	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, values[i]/values[i-1]-1)
	}

	return returns
}

// returnMetrics computes the return measures of a daily returns series.
// rf is the annual risk free rate, converted to a daily rate.
func returnMetrics(returns []float64, rf float64, annual int) types.ReturnMetrics {
	if len(returns) == 0 {
		return types.ReturnMetrics{}
	}

	days := float64(annual)
	dailyRF := math.Pow(1+rf, 1/days) - 1

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}

	total := cumulative(returns)
	annualReturn := math.Pow(1+total, days/float64(len(returns))) - 1
	drawdown := maxDrawdown(returns)

	metrics := types.ReturnMetrics{
		TotalProfitRate: total,
		MeanReturn:      mean(returns),
		MaxDrawdown:     drawdown,
		AnnualReturn:    annualReturn,
		Volatility:      stddev(returns) * math.Sqrt(days),
	}

	if std := stddev(excess); std > 0 {
		metrics.Sharpe = mean(excess) / std * math.Sqrt(days)
	}

	if downside := downsideDeviation(excess); downside > 0 {
		metrics.Sortino = mean(excess) / downside * math.Sqrt(days)
	}

	if drawdown < 0 {
		metrics.Calmar = annualReturn / math.Abs(drawdown)
	}

	return metrics
}

func cumulative(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}

	return growth - 1
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	sum := 0.0

	for _, v := range values {
		sum += (v - m) * (v - m)
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

// downsideDeviation is the root mean square of the negative part of values.
func downsideDeviation(values []float64) float64 {
	sum := 0.0

	for _, v := range values {
		if v < 0 {
			sum += v * v
		}
	}

	return math.Sqrt(sum / float64(len(values)))
}

// maxDrawdown is the worst peak to trough loss of the compounded curve, zero or negative.
func maxDrawdown(returns []float64) float64 {
	peak := 1.0
	value := 1.0
	worst := 0.0

	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}

		if drawdown := value/peak - 1; drawdown < worst {
			worst = drawdown
		}
	}

	return worst
}

type txStats struct {
	count       int
	profit      float64
	winRate     float64
	maxHolding  int
	meanHolding float64
}

// transactionStats summarizes the transactions that exited in [from, to].
func transactionStats(transactions []types.Transaction, from time.Time, to time.Time) txStats {
	var (
		stats   txStats
		wins    int
		holding int
	)

	for _, tx := range transactions {
		exit := calendar.Date(tx.ExitTime)
		if exit.Before(from) || exit.After(to) {
			continue
		}

		stats.count++
		stats.profit += tx.Profit
		holding += tx.HoldingDays

		if tx.Profit > 0 {
			wins++
		}

		stats.maxHolding = max(stats.maxHolding, tx.HoldingDays)
	}

	if stats.count > 0 {
		stats.winRate = float64(wins) / float64(stats.count)
		stats.meanHolding = float64(holding) / float64(stats.count)
	}

	return stats
}
