package types

import "time"

// Account is the static description of one backtest run.
type Account struct {
	Name      string    `json:"name" yaml:"name"`
	Principal float64   `json:"principal" yaml:"principal"`
	// Commission is a rate charged on trade value.
	Commission float64   `json:"commission" yaml:"commission"`
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
	// Stopped is set once the backtest is stopped; the account accepts no more orders.
	Stopped bool `json:"stopped" yaml:"stopped"`
}

// AccountInfo is the account state as of a day.
type AccountInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Principal float64   `json:"principal" yaml:"principal"`
	Start     time.Time `json:"start" yaml:"start"`
	End       time.Time `json:"end" yaml:"end"`
	Stopped   bool      `json:"stopped" yaml:"stopped"`
	// LastTrade is the bid time of the last accepted order, zero when none.
	LastTrade time.Time `json:"last_trade" yaml:"last_trade"`
	// Date is the day the figures below refer to.
	Date        time.Time       `json:"date" yaml:"date"`
	Assets      float64         `json:"assets" yaml:"assets"`
	Available   float64         `json:"available" yaml:"available"`
	MarketValue float64         `json:"market_value" yaml:"market_value"`
	PnL         float64         `json:"pnl" yaml:"pnl"`
	PnLRate     float64         `json:"pnl_rate" yaml:"pnl_rate"`
	Positions   []PositionEntry `json:"positions" yaml:"positions"`
}

// Bills is the read-only record of a finished backtest.
type Bills struct {
	Entrusts     []Entrust     `json:"entrusts" yaml:"entrusts"`
	Trades       []Trade       `json:"trades" yaml:"trades"`
	Transactions []Transaction `json:"transactions" yaml:"transactions"`
	Positions    []PositionRow `json:"positions" yaml:"positions"`
	Assets       []AssetRow    `json:"assets" yaml:"assets"`
	Cash         []CashRow     `json:"cash" yaml:"cash"`
}
