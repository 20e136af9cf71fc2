package types

import "time"

// CashRow is the cash balance at the close of Date.
type CashRow struct {
	Date time.Time `yaml:"date" json:"date" csv:"date"`
	Cash float64   `yaml:"cash" json:"cash" csv:"cash"`
}

// PositionRow is the holding of one security at the close of Date.
// A day without holdings is a single row with an empty Security.
type PositionRow struct {
	Date     time.Time `yaml:"date" json:"date" csv:"date"`
	Security string    `yaml:"security" json:"security" csv:"security"`
	Shares   float64   `yaml:"shares" json:"shares" csv:"shares"`
	Sellable float64   `yaml:"sellable" json:"sellable" csv:"sellable"`
	// Price is the weighted average cost of the open shares.
	Price float64 `yaml:"price" json:"price" csv:"price"`
}

// IsSentinel reports whether the row marks a day without holdings.
func (r PositionRow) IsSentinel() bool {
	return r.Security == ""
}

// AssetRow is cash plus market value at the close of Date.
type AssetRow struct {
	Date   time.Time `yaml:"date" json:"date" csv:"date"`
	Assets float64   `yaml:"assets" json:"assets" csv:"assets"`
}

// PositionEntry is the holding of one security as of a day.
type PositionEntry struct {
	Security string  `yaml:"security" json:"security"`
	Shares   float64 `yaml:"shares" json:"shares"`
	Sellable float64 `yaml:"sellable" json:"sellable"`
	Price    float64 `yaml:"price" json:"price"`
}
