package broker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
)

// BillsStore stages bills in an in-memory DuckDB database for export.
type BillsStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var billTables = []string{"entrusts", "trades", "transactions", "positions", "assets", "cash"}

func NewBillsStore(log *logger.Logger) (*BillsStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExportFailed, "failed to open database", err)
	}

	store := &BillsStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *BillsStore) initialize() error {
	statements := []string{
		`CREATE TABLE entrusts (
			id TEXT PRIMARY KEY,
			security TEXT,
			side TEXT,
			bid_shares DOUBLE,
			bid_price DOUBLE,
			bid_time TIMESTAMP,
			bid_type TEXT
		)`,
		`CREATE TABLE trades (
			trade_id TEXT PRIMARY KEY,
			entrust_id TEXT,
			security TEXT,
			price DOUBLE,
			shares DOUBLE,
			fee DOUBLE,
			side TEXT,
			time TIMESTAMP,
			unsold_shares DOUBLE,
			unamortized_fee DOUBLE,
			closed BOOLEAN
		)`,
		`CREATE TABLE transactions (
			security TEXT,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			shares DOUBLE,
			fee DOUBLE,
			profit DOUBLE,
			profit_rate DOUBLE,
			holding_days INTEGER
		)`,
		`CREATE TABLE positions (
			date DATE,
			security TEXT,
			shares DOUBLE,
			sellable DOUBLE,
			price DOUBLE
		)`,
		`CREATE TABLE assets (
			date DATE,
			assets DOUBLE
		)`,
		`CREATE TABLE cash (
			date DATE,
			cash DOUBLE
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeExportFailed, "failed to create bills table", err)
		}
	}

	return nil
}

// Load inserts bills into the store in one transaction.
func (s *BillsStore) Load(ctx context.Context, bills types.Bills) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to begin transaction", err)
	}

	inserts := make([]squirrel.InsertBuilder, 0, len(billTables))

	if len(bills.Entrusts) > 0 {
		q := s.sq.Insert("entrusts").Columns("id", "security", "side", "bid_shares", "bid_price", "bid_time", "bid_type")
		for _, e := range bills.Entrusts {
			var price any
			if e.BidPrice.IsSome() {
				price = e.BidPrice.Unwrap()
			}

			q = q.Values(e.ID, e.Security, string(e.Side), e.BidShares, price, e.BidTime, string(e.BidType))
		}

		inserts = append(inserts, q)
	}

	if len(bills.Trades) > 0 {
		q := s.sq.Insert("trades").Columns("trade_id", "entrust_id", "security", "price", "shares", "fee", "side", "time",
			"unsold_shares", "unamortized_fee", "closed")
		for _, t := range bills.Trades {
			q = q.Values(t.TradeID, t.EntrustID, t.Security, t.Price, t.Shares, t.Fee, string(t.Side), t.Time,
				t.UnsoldShares, t.UnamortizedFee, t.Closed)
		}

		inserts = append(inserts, q)
	}

	if len(bills.Transactions) > 0 {
		q := s.sq.Insert("transactions").Columns("security", "entry_time", "exit_time", "entry_price", "exit_price",
			"shares", "fee", "profit", "profit_rate", "holding_days")
		for _, t := range bills.Transactions {
			q = q.Values(t.Security, t.EntryTime, t.ExitTime, t.EntryPrice, t.ExitPrice,
				t.Shares, t.Fee, t.Profit, t.ProfitRate, t.HoldingDays)
		}

		inserts = append(inserts, q)
	}

	if len(bills.Positions) > 0 {
		q := s.sq.Insert("positions").Columns("date", "security", "shares", "sellable", "price")
		for _, p := range bills.Positions {
			var security any
			if !p.IsSentinel() {
				security = p.Security
			}

			q = q.Values(p.Date, security, p.Shares, p.Sellable, p.Price)
		}

		inserts = append(inserts, q)
	}

	if len(bills.Assets) > 0 {
		q := s.sq.Insert("assets").Columns("date", "assets")
		for _, a := range bills.Assets {
			q = q.Values(a.Date, a.Assets)
		}

		inserts = append(inserts, q)
	}

	if len(bills.Cash) > 0 {
		q := s.sq.Insert("cash").Columns("date", "cash")
		for _, c := range bills.Cash {
			q = q.Values(c.Date, c.Cash)
		}

		inserts = append(inserts, q)
	}

	for _, insert := range inserts {
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeExportFailed, "failed to insert bills", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to commit bills", err)
	}

	return nil
}

// Count returns the number of rows in a bills table.
func (s *BillsStore) Count(ctx context.Context, table string) (int, error) {
	var count int

	err := s.sq.Select("COUNT(*)").From(table).RunWith(s.db).QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to count %s", table)
	}

	return count, nil
}

// Write saves every bills table to a Parquet file in dir.
func (s *BillsStore) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create directory", err)
	}

	paths := make([]zap.Field, 0, len(billTables))

	for _, table := range billTables {
		path := filepath.Join(dir, table+".parquet")

		// squirrel does not build COPY statements
		if _, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, path)); err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s to Parquet", table)
		}

		paths = append(paths, zap.String(table, path))
	}

	s.logger.Info("Successfully exported bills to Parquet files", paths...)

	return nil
}

func (s *BillsStore) Close() error {
	return s.db.Close()
}

// WriteBills exports bills to Parquet files in dir.
func WriteBills(ctx context.Context, bills types.Bills, dir string, log *logger.Logger) error {
	store, err := NewBillsStore(log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Load(ctx, bills); err != nil {
		return err
	}

	return store.Write(dir)
}
