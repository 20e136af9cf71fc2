package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBConfig points the feed at its parquet files.
//
// market_data holds minute bars: time, symbol, open, high, low, close, volume.
// price_limits holds symbol, date, high_limit, low_limit. When it is not given
// the limits are derived from the previous close and LimitRate.
// dr_factors holds symbol, date, factor. When it is not given every factor is 1.
type DuckDBConfig struct {
	MarketDataPath  string  `yaml:"market_data" json:"market_data" validate:"required" jsonschema:"title=Market data,description=Parquet file of minute bars"`
	PriceLimitsPath string  `yaml:"price_limits,omitempty" json:"price_limits,omitempty" jsonschema:"title=Price limits,description=Parquet file of daily limit prices"`
	DRFactorsPath   string  `yaml:"dr_factors,omitempty" json:"dr_factors,omitempty" jsonschema:"title=Ex-rights factors,description=Parquet file of cumulative ex-rights factors"`
	LimitRate       float64 `yaml:"limit_rate,omitempty" json:"limit_rate,omitempty" validate:"gte=0,lt=1" jsonschema:"title=Limit rate,description=Daily price limit as a fraction of the previous close,default=0.1"`
}

const defaultLimitRate = 0.1

type DuckDBFeed struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBFeed opens an in-memory DuckDB and creates the market data views.
func NewDuckDBFeed(config DuckDBConfig, log *logger.Logger) (*DuckDBFeed, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "invalid feed config", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to open duckdb", err)
	}

	feed := &DuckDBFeed{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := feed.initialize(config); err != nil {
		db.Close()

		return nil, err
	}

	return feed, nil
}

func (d *DuckDBFeed) initialize(config DuckDBConfig) error {
	d.logger.Debug("Initializing DuckDB feed",
		zap.String("market_data", config.MarketDataPath),
		zap.String("price_limits", config.PriceLimitsPath),
		zap.String("dr_factors", config.DRFactorsPath),
	)

	// Using raw SQL as Squirrel doesn't support CREATE VIEW
	statements := []string{
		fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM read_parquet('%s');`, config.MarketDataPath),
	}

	if config.PriceLimitsPath != "" {
		statements = append(statements, fmt.Sprintf(`
			CREATE VIEW price_limits AS
			SELECT symbol, CAST(date AS DATE) AS date, high_limit, low_limit
			FROM read_parquet('%s');
		`, config.PriceLimitsPath))
	} else {
		rate := config.LimitRate
		if rate == 0 {
			rate = defaultLimitRate
		}

		statements = append(statements, fmt.Sprintf(`
			CREATE VIEW price_limits AS
			WITH daily AS (
				SELECT symbol, CAST(time AS DATE) AS date, arg_max(close, time) AS close
				FROM market_data
				GROUP BY symbol, CAST(time AS DATE)
			)
			SELECT
				symbol,
				date,
				round(lag(close) OVER (PARTITION BY symbol ORDER BY date) * (1 + %[1]f), 2) AS high_limit,
				round(lag(close) OVER (PARTITION BY symbol ORDER BY date) * (1 - %[1]f), 2) AS low_limit
			FROM daily;
		`, rate))
	}

	if config.DRFactorsPath != "" {
		statements = append(statements, fmt.Sprintf(`
			CREATE VIEW dr_factors AS
			SELECT symbol, CAST(date AS DATE) AS date, factor
			FROM read_parquet('%s');
		`, config.DRFactorsPath))
	} else {
		statements = append(statements, `
			CREATE TABLE dr_factors (symbol VARCHAR, date DATE, factor DOUBLE);
		`)
	}

	for _, statement := range statements {
		if _, err := d.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeFeedFailed, "failed to create feed views", err)
		}
	}

	return nil
}

// Close closes the database.
func (d *DuckDBFeed) Close() error {
	return d.db.Close()
}

// Calendar builds a trading calendar from the sessions present in the market data.
func (d *DuckDBFeed) Calendar(ctx context.Context) (*calendar.TradingCalendar, error) {
	days, err := d.sessionDays(ctx)
	if err != nil {
		return nil, err
	}

	return calendar.NewCalendar(days), nil
}

// sessionDays returns the days any security traded on, ascending, filtered by where.
func (d *DuckDBFeed) sessionDays(ctx context.Context, where ...squirrel.Sqlizer) ([]time.Time, error) {
	builder := d.sq.
		Select("CAST(time AS DATE) AS day").
		Distinct().
		From("market_data")

	for _, condition := range where {
		builder = builder.Where(condition)
	}

	query, args, err := builder.OrderBy("day ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to build session query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to query sessions", err)
	}
	defer rows.Close()

	var days []time.Time

	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to scan session", err)
		}

		days = append(days, calendar.Date(day))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "error iterating sessions", err)
	}

	return days, nil
}

// GetPriceForMatch implements Feed.
func (d *DuckDBFeed) GetPriceForMatch(ctx context.Context, security string, from time.Time) ([]types.Bar, error) {
	query, args, err := d.sq.
		Select("time", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": security}).
		Where(squirrel.GtOrEq{"time": from.Truncate(time.Minute)}).
		Where(squirrel.Lt{"time": calendar.Date(from).AddDate(0, 0, 1)}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to build bar query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFeedFailed, err, "failed to query bars of %s", security)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar
		if err := rows.Scan(&bar.Time, &bar.Price, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "error iterating bars", err)
	}

	return bars, nil
}

// GetTradePriceLimits implements Feed.
func (d *DuckDBFeed) GetTradePriceLimits(ctx context.Context, security string, date time.Time) (types.PriceLimits, error) {
	day := calendar.Date(date)

	query, args, err := d.sq.
		Select("high_limit", "low_limit").
		From("price_limits").
		Where(squirrel.Eq{"symbol": security}).
		Where(squirrel.Eq{"date": day}).
		Limit(1).
		ToSql()
	if err != nil {
		return types.PriceLimits{}, errors.Wrap(errors.ErrCodeFeedFailed, "failed to build price limit query", err)
	}

	var high, low sql.NullFloat64

	err = d.db.QueryRowContext(ctx, query, args...).Scan(&high, &low)
	if err == sql.ErrNoRows || (err == nil && (!high.Valid || !low.Valid)) {
		return types.PriceLimits{}, errors.Newf(errors.ErrCodeMarketDataMissing, "no price limits for %s on %s", security, day.Format(time.DateOnly))
	}

	if err != nil {
		return types.PriceLimits{}, errors.Wrapf(errors.ErrCodeFeedFailed, err, "failed to query price limits of %s", security)
	}

	return types.PriceLimits{
		Date:      day,
		BuyLimit:  high.Float64,
		SellLimit: low.Float64,
	}, nil
}

// GetClosePrice implements Feed.
func (d *DuckDBFeed) GetClosePrice(ctx context.Context, securities []string, date time.Time) (map[string]float64, error) {
	day := calendar.Date(date)

	raw, err := d.dailyCloses(ctx, securities, day)
	if err != nil {
		return nil, err
	}

	result := make(map[string]float64, len(securities))

	for _, security := range securities {
		if price, ok := asOf(raw[security], day); ok {
			result[security] = price
		}
	}

	return result, nil
}

// BatchGetClosePriceInRange implements Feed. The days are the sessions of the
// whole market, so a security suspended through the range still gets its
// previous close on each of them.
func (d *DuckDBFeed) BatchGetClosePriceInRange(ctx context.Context, securities []string, start time.Time, end time.Time) (types.DailyTable, error) {
	start, end = calendar.Date(start), calendar.Date(end)

	days, err := d.sessionDays(ctx,
		squirrel.GtOrEq{"time": start},
		squirrel.Lt{"time": end.AddDate(0, 0, 1)},
	)
	if err != nil {
		return nil, err
	}

	raw, err := d.dailyCloses(ctx, securities, end)
	if err != nil {
		return nil, err
	}

	return forwardFill(raw, securities, days), nil
}

// GetDRFactor implements Feed.
func (d *DuckDBFeed) GetDRFactor(ctx context.Context, securities []string, days []time.Time, normalized bool) (types.DailyTable, error) {
	if len(securities) == 0 || len(days) == 0 {
		return types.DailyTable{}, nil
	}

	last := days[0]
	for _, day := range days {
		if day.After(last) {
			last = day
		}
	}

	query, args, err := d.sq.
		Select("symbol", "date", "factor").
		From("dr_factors").
		Where(squirrel.Eq{"symbol": securities}).
		Where(squirrel.LtOrEq{"date": calendar.Date(last)}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to build factor query", err)
	}

	raw, err := d.queryDaily(ctx, query, args)
	if err != nil {
		return nil, err
	}

	return factorTable(raw, securities, days, normalized), nil
}

// dailyCloses returns the last minute close of every session up to and including end.
func (d *DuckDBFeed) dailyCloses(ctx context.Context, securities []string, end time.Time) (types.DailyTable, error) {
	if len(securities) == 0 {
		return types.DailyTable{}, nil
	}

	query, args, err := d.sq.
		Select("symbol", "CAST(time AS DATE) AS day", "arg_max(close, time) AS close").
		From("market_data").
		Where(squirrel.Eq{"symbol": securities}).
		Where(squirrel.Lt{"time": end.AddDate(0, 0, 1)}).
		GroupBy("symbol", "CAST(time AS DATE)").
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to build close query", err)
	}

	return d.queryDaily(ctx, query, args)
}

// queryDaily scans (symbol, day, value) rows into a table.
func (d *DuckDBFeed) queryDaily(ctx context.Context, query string, args []interface{}) (types.DailyTable, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to query daily values", err)
	}
	defer rows.Close()

	table := types.DailyTable{}

	for rows.Next() {
		var (
			symbol string
			day    time.Time
			value  float64
		)

		if err := rows.Scan(&symbol, &day, &value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to scan daily value", err)
		}

		table.Set(symbol, calendar.Date(day), value)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "error iterating daily values", err)
	}

	return table, nil
}
