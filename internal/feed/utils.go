package feed

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/types"
)

// sessions returns the distinct days of raw that fall in [start, end], ascending.
func sessions(raw types.DailyTable, start time.Time, end time.Time) []time.Time {
	seen := map[time.Time]struct{}{}

	for _, series := range raw {
		for day := range series {
			if day.Before(start) || day.After(end) {
				continue
			}

			seen[day] = struct{}{}
		}
	}

	days := make([]time.Time, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return days
}

// asOf returns the latest value of series on or before day.
func asOf(series types.DailySeries, day time.Time) (float64, bool) {
	if value, ok := series[day]; ok {
		return value, true
	}

	var (
		latest time.Time
		value  float64
		found  bool
	)

	for d, v := range series {
		if d.After(day) {
			continue
		}

		if !found || d.After(latest) {
			latest, value, found = d, v, true
		}
	}

	return value, found
}

// forwardFill lays the raw closes of securities onto each of days. A security
// suspended on a day carries its previous close, from before days[0] if needed.
func forwardFill(raw types.DailyTable, securities []string, days []time.Time) types.DailyTable {
	table := types.DailyTable{}

	for _, security := range securities {
		series, ok := raw[security]
		if !ok {
			continue
		}

		for _, day := range days {
			if value, ok := asOf(series, day); ok {
				table.Set(security, day, value)
			}
		}
	}

	return table
}

// factorTable looks up the factor of every security on every day and normalizes
// it to the first day when asked to.
func factorTable(raw types.DailyTable, securities []string, days []time.Time, normalized bool) types.DailyTable {
	table := types.DailyTable{}

	for _, security := range securities {
		series, ok := raw[security]
		if !ok {
			continue
		}

		base := 0.0

		for _, d := range days {
			day := calendar.Date(d)

			value, ok := asOf(series, day)
			if !ok {
				continue
			}

			if base == 0 {
				base = value
			}

			if normalized && base != 0 {
				value /= base
			}

			table.Set(security, day, value)
		}
	}

	return table
}
