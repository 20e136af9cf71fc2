package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReturnMetrics are the measures computed from a daily returns series.
type ReturnMetrics struct {
	// TotalProfitRate is the compounded return over the window.
	TotalProfitRate float64 `yaml:"total_profit_rate" json:"total_profit_rate"`
	// MeanReturn is the arithmetic mean of the daily returns.
	MeanReturn float64 `yaml:"mean_return" json:"mean_return"`
	// Sharpe is annualized.
	Sharpe float64 `yaml:"sharpe" json:"sharpe"`
	// Sortino is annualized, using downside deviation.
	Sortino float64 `yaml:"sortino" json:"sortino"`
	// Calmar is annual return over the absolute max drawdown.
	Calmar float64 `yaml:"calmar" json:"calmar"`
	// MaxDrawdown is the worst peak to trough loss, a non-positive fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// AnnualReturn is (1+total)^(annual_days/window_days) - 1.
	AnnualReturn float64 `yaml:"annual_return" json:"annual_return"`
	// Volatility is the annualized standard deviation of daily returns.
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// Metrics is the performance summary of an account over a window.
type Metrics struct {
	Start  time.Time `yaml:"start" json:"start"`
	End    time.Time `yaml:"end" json:"end"`
	Window int       `yaml:"window" json:"window"`
	// TotalTx is the number of closed transactions in the window.
	TotalTx     int     `yaml:"total_tx" json:"total_tx"`
	TotalProfit float64 `yaml:"total_profit" json:"total_profit"`
	// WinRate is winning transactions over all transactions, zero without transactions.
	WinRate         float64 `yaml:"win_rate" json:"win_rate"`
	MaxHoldingDays  int     `yaml:"max_holding_days" json:"max_holding_days"`
	MeanHoldingDays float64 `yaml:"mean_holding_days" json:"mean_holding_days"`

	ReturnMetrics `yaml:",inline"`

	// Baseline holds the same measures for the baseline security, nil when none was requested.
	Baseline *BaselineMetrics `yaml:"baseline,omitempty" json:"baseline,omitempty"`
}

// BaselineMetrics are the return measures of a reference security.
type BaselineMetrics struct {
	Security      string `yaml:"security" json:"security"`
	ReturnMetrics `yaml:",inline"`
}

// WriteMetrics writes the metrics to path as YAML.
func WriteMetrics(path string, metrics Metrics) error {
	data, err := yaml.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics to file: %w", err)
	}

	return nil
}
