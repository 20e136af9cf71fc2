package types

import (
	"sort"
	"time"
)

// Bar is one entry of the liquidity queue: the minute's price and traded volume.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Price  float64   `yaml:"price" json:"price" csv:"price"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// PriceLimits holds the limit-up (BuyLimit) and limit-down (SellLimit) prices of a session.
type PriceLimits struct {
	Date      time.Time `yaml:"date" json:"date" csv:"date"`
	BuyLimit  float64   `yaml:"buy_limit" json:"buy_limit" csv:"buy_limit"`
	SellLimit float64   `yaml:"sell_limit" json:"sell_limit" csv:"sell_limit"`
}

// DailySeries maps a trading day to a value.
type DailySeries map[time.Time]float64

// DailyTable has one DailySeries per security.
type DailyTable map[string]DailySeries

// Get returns the value for security on day.
func (t DailyTable) Get(security string, day time.Time) (float64, bool) {
	series, ok := t[security]
	if !ok {
		return 0, false
	}

	value, ok := series[day]

	return value, ok
}

// Set stores value for security on day.
func (t DailyTable) Set(security string, day time.Time, value float64) {
	series, ok := t[security]
	if !ok {
		series = DailySeries{}
		t[security] = series
	}

	series[day] = value
}

// Days returns the days of the series in ascending order.
func (s DailySeries) Days() []time.Time {
	days := make([]time.Time, 0, len(s))
	for d := range s {
		days = append(days, d)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}
