package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one closed round trip: a buy lot (or part of it) and the sell that closed it.
type Transaction struct {
	Security   string    `yaml:"security" json:"security" csv:"security"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64   `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	Shares     float64   `yaml:"shares" json:"shares" csv:"shares"`
	// Fee is the amortized buy fee plus the amortized sell fee.
	Fee float64 `yaml:"fee" json:"fee" csv:"fee"`
	// Profit is (exit - entry) * shares - fee.
	Profit float64 `yaml:"profit" json:"profit" csv:"profit"`
	// ProfitRate is profit over the entry amount.
	ProfitRate float64 `yaml:"profit_rate" json:"profit_rate" csv:"profit_rate"`
	// HoldingDays counts trading days from entry to exit, both included.
	HoldingDays int `yaml:"holding_days" json:"holding_days" csv:"holding_days"`
}

// NewTransaction builds a transaction and derives its profit figures.
func NewTransaction(security string, entryTime time.Time, exitTime time.Time, entryPrice float64, exitPrice float64, shares float64, fee float64) Transaction {
	sharesDec := decimal.NewFromFloat(shares)
	entryDec := decimal.NewFromFloat(entryPrice).Mul(sharesDec)
	exitDec := decimal.NewFromFloat(exitPrice).Mul(sharesDec)
	profitDec := exitDec.Sub(entryDec).Sub(decimal.NewFromFloat(fee))

	profit, _ := profitDec.Float64()

	profitRate := 0.0
	if !entryDec.IsZero() {
		profitRate, _ = profitDec.Div(entryDec).Float64()
	}

	return Transaction{
		Security:   security,
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Shares:     shares,
		Fee:        fee,
		Profit:     profit,
		ProfitRate: profitRate,
	}
}

// WithHoldingDays returns a copy with the holding period set.
func (t Transaction) WithHoldingDays(days int) Transaction {
	t.HoldingDays = days

	return t
}
