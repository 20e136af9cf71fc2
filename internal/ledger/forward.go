package ledger

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/shopspring/decimal"
)

// ForwardCash repeats the last cash balance on every day of days that comes
// after the last row. It returns the number of rows added.
func ForwardCash(table *CashTable, days []time.Time) int {
	last, ok := table.Last()
	if !ok {
		return 0
	}

	added := 0

	for _, day := range days {
		if !day.After(last.Date) {
			continue
		}

		last = types.CashRow{Date: day, Cash: last.Cash}
		table.Set(last)
		added++
	}

	return added
}

// ForwardPositions carries the holdings of the last recorded day onto every day
// of days that comes after it.
//
// Carried rows are fully sellable. factors holds the ex-rights factor of each
// security normalized to the last recorded day; shares are multiplied by it and
// the cost price divided by it. A security without a factor on a day carries
// unadjusted. Rows without shares are dropped, and a day left without holdings
// gets a sentinel row.
func ForwardPositions(table *PositionTable, days []time.Time, factors types.DailyTable) int {
	source, ok := table.LastDate()
	if !ok {
		return 0
	}

	held := HeldRows(table.Day(source))
	added := 0

	for _, day := range days {
		if !day.After(source) {
			continue
		}

		rows := make([]types.PositionRow, 0, len(held))

		for _, row := range held {
			shares := decimal.NewFromFloat(row.Shares)
			price := decimal.NewFromFloat(row.Price)

			if factor, ok := factors.Get(row.Security, day); ok && factor > 0 {
				f := decimal.NewFromFloat(factor)
				shares = shares.Mul(f)
				price = price.Div(f)
			}

			carried, _ := shares.Float64()
			cost, _ := price.Float64()

			rows = append(rows, types.PositionRow{
				Date:     day,
				Security: row.Security,
				Shares:   carried,
				Sellable: carried,
				Price:    cost,
			})
		}

		table.SetDay(day, rows)
		added++
	}

	return added
}

// HeldRows filters out sentinel rows and rows without shares.
func HeldRows(rows []types.PositionRow) []types.PositionRow {
	held := make([]types.PositionRow, 0, len(rows))

	for _, row := range rows {
		if row.IsSentinel() || row.Shares < types.ClosedEpsilon {
			continue
		}

		held = append(held, row)
	}

	return held
}

// CloseMark is the last close seen for a security and the day it was seen on.
type CloseMark struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// MarketValues values the holdings of table on each of days.
//
// A security without a close on a day is valued at its mark in lastClose,
// which is moved forward as closes are seen. Callers must drop marks dated on
// or after the first of days. The securities that could not be valued at all
// are returned as missing.
func MarketValues(table *PositionTable, days []time.Time, closes types.DailyTable, lastClose map[string]CloseMark) (types.DailySeries, []string) {
	values := types.DailySeries{}
	missing := map[string]struct{}{}

	for _, day := range days {
		total := decimal.Zero

		_, rows, _ := table.AsOf(day)
		for _, row := range HeldRows(rows) {
			price, ok := closes.Get(row.Security, day)
			if ok {
				lastClose[row.Security] = CloseMark{Date: day, Price: price}
			} else {
				var mark CloseMark
				mark, ok = lastClose[row.Security]
				price = mark.Price
			}

			if !ok {
				missing[row.Security] = struct{}{}

				continue
			}

			total = total.Add(decimal.NewFromFloat(row.Shares).Mul(decimal.NewFromFloat(price)))
		}

		values[day], _ = total.Float64()
	}

	securities := make([]string, 0, len(missing))
	for security := range missing {
		securities = append(securities, security)
	}

	sort.Strings(securities)

	return values, securities
}
