package feed

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
)

// ParquetWriter collects market data in an in-memory DuckDB and exports it as
// the parquet files read by DuckDBFeed.
type ParquetWriter struct {
	db      *sql.DB
	tx      *sql.Tx
	bars    *sql.Stmt
	limits  *sql.Stmt
	factors *sql.Stmt
	logger  *logger.Logger

	rows map[string]int
}

const (
	marketDataTable  = "market_data"
	priceLimitsTable = "price_limits"
	drFactorsTable   = "dr_factors"
)

// NewParquetWriter opens the scratch database and begins the write transaction.
func NewParquetWriter(log *logger.Logger) (*ParquetWriter, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExportFailed, "failed to open DuckDB connection", err)
	}

	w := &ParquetWriter{db: db, logger: log, rows: map[string]int{}}

	if err := w.initialize(); err != nil {
		w.Close()

		return nil, err
	}

	return w, nil
}

func (w *ParquetWriter) initialize() error {
	statements := []string{
		`CREATE TABLE market_data (time TIMESTAMP, symbol TEXT, open DOUBLE, high DOUBLE, low DOUBLE, close DOUBLE, volume DOUBLE)`,
		`CREATE TABLE price_limits (symbol TEXT, date DATE, high_limit DOUBLE, low_limit DOUBLE)`,
		`CREATE TABLE dr_factors (symbol TEXT, date DATE, factor DOUBLE)`,
	}

	for _, statement := range statements {
		if _, err := w.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeExportFailed, "failed to create table", err)
		}
	}

	var err error

	w.tx, err = w.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to begin transaction", err)
	}

	prepare := func(query string) *sql.Stmt {
		if err != nil {
			return nil
		}

		var stmt *sql.Stmt

		stmt, err = w.tx.Prepare(query)

		return stmt
	}

	w.bars = prepare(`INSERT INTO market_data (time, symbol, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	w.limits = prepare(`INSERT INTO price_limits (symbol, date, high_limit, low_limit) VALUES (?, ?, ?, ?)`)
	w.factors = prepare(`INSERT INTO dr_factors (symbol, date, factor) VALUES (?, ?, ?)`)

	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to prepare statement", err)
	}

	return nil
}

// WriteBar adds a minute bar. Its price is used for open, high, low and close.
func (w *ParquetWriter) WriteBar(security string, bar types.Bar) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeExportFailed, "writer is already finalized")
	}

	if _, err := w.bars.Exec(bar.Time, security, bar.Price, bar.Price, bar.Price, bar.Price, bar.Volume); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to insert bar", err)
	}

	w.rows[marketDataTable]++

	return nil
}

func (w *ParquetWriter) WritePriceLimits(security string, limits types.PriceLimits) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeExportFailed, "writer is already finalized")
	}

	if _, err := w.limits.Exec(security, limits.Date, limits.BuyLimit, limits.SellLimit); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to insert price limits", err)
	}

	w.rows[priceLimitsTable]++

	return nil
}

// WriteDRFactor adds the cumulative ex-rights factor of security on day.
func (w *ParquetWriter) WriteDRFactor(security string, day time.Time, factor float64) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeExportFailed, "writer is already finalized")
	}

	if _, err := w.factors.Exec(security, day, factor); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to insert ex-rights factor", err)
	}

	w.rows[drFactorsTable]++

	return nil
}

// Finalize commits the written rows and exports them to dir. Tables without
// rows are skipped and their path is left empty in the returned config.
func (w *ParquetWriter) Finalize(dir string) (DuckDBConfig, error) {
	if w.tx == nil {
		return DuckDBConfig{}, errors.New(errors.ErrCodeExportFailed, "writer is already finalized")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return DuckDBConfig{}, errors.Wrap(errors.ErrCodeExportFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	if err := os.MkdirAll(dir, 0755); err != nil {
		return DuckDBConfig{}, errors.Wrap(errors.ErrCodeExportFailed, "failed to create directory", err)
	}

	var config DuckDBConfig

	targets := []struct {
		table string
		path  *string
	}{
		{marketDataTable, &config.MarketDataPath},
		{priceLimitsTable, &config.PriceLimitsPath},
		{drFactorsTable, &config.DRFactorsPath},
	}

	for _, target := range targets {
		if w.rows[target.table] == 0 {
			continue
		}

		path := filepath.Join(dir, target.table+".parquet")
		if _, err := w.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, target.table, path)); err != nil {
			return DuckDBConfig{}, errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s to Parquet", target.table)
		}

		*target.path = path

		w.logger.Info("Exported market data",
			zap.String("table", target.table),
			zap.String("path", path),
			zap.Int("rows", w.rows[target.table]),
		)
	}

	return config, nil
}

// Close releases the statements and the database.
func (w *ParquetWriter) Close() error {
	for _, stmt := range []*sql.Stmt{w.bars, w.limits, w.factors} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if w.tx != nil {
		w.tx.Rollback()
		w.tx = nil
	}

	return w.db.Close()
}
