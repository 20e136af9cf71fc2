// Package calendar provides the trading-day calendar used to index the
// account ledgers. All days are normalized to midnight UTC of their civil date.
package calendar

import (
	"sort"
	"time"
)

// Calendar answers trading-day questions for the ledgers and the broker.
type Calendar interface {
	// IsTradingDay reports whether the exchange is open on day.
	IsTradingDay(day time.Time) bool
	// DayShift floors day to a trading day and then moves n trading days.
	DayShift(day time.Time, n int) time.Time
	// TradingDays returns every trading day in [start, end], ascending.
	TradingDays(start time.Time, end time.Time) []time.Time
	// Count returns the number of trading days in [start, end].
	Count(start time.Time, end time.Time) int
}

// Date truncates t to its civil date at midnight UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TradingCalendar is a Calendar backed by an explicit list of sessions.
// Outside the listed range it falls back to weekdays minus holidays.
type TradingCalendar struct {
	days     []time.Time
	index    map[time.Time]struct{}
	holidays map[time.Time]struct{}
}

// NewCalendar creates a calendar from the given sessions. Duplicates are removed.
func NewCalendar(days []time.Time) *TradingCalendar {
	index := make(map[time.Time]struct{}, len(days))
	sorted := make([]time.Time, 0, len(days))

	for _, d := range days {
		day := Date(d)
		if _, ok := index[day]; ok {
			continue
		}

		index[day] = struct{}{}
		sorted = append(sorted, day)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	return &TradingCalendar{
		days:     sorted,
		index:    index,
		holidays: map[time.Time]struct{}{},
	}
}

// NewWeekdayCalendar creates a calendar where every weekday except the holidays is a session.
func NewWeekdayCalendar(holidays ...time.Time) *TradingCalendar {
	cal := NewCalendar(nil)
	for _, h := range holidays {
		cal.holidays[Date(h)] = struct{}{}
	}

	return cal
}

// IsTradingDay implements Calendar.
func (c *TradingCalendar) IsTradingDay(day time.Time) bool {
	day = Date(day)

	if c.covers(day) {
		_, ok := c.index[day]

		return ok
	}

	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return false
	}

	_, holiday := c.holidays[day]

	return !holiday
}

// DayShift implements Calendar.
func (c *TradingCalendar) DayShift(day time.Time, n int) time.Time {
	current := c.floor(Date(day))

	for ; n > 0; n-- {
		current = c.next(current)
	}

	for ; n < 0; n++ {
		current = c.prev(current)
	}

	return current
}

// TradingDays implements Calendar.
func (c *TradingCalendar) TradingDays(start time.Time, end time.Time) []time.Time {
	start, end = Date(start), Date(end)
	if end.Before(start) {
		return nil
	}

	current := start
	if !c.IsTradingDay(current) {
		current = c.next(current)
	}

	var days []time.Time
	for !current.After(end) {
		days = append(days, current)
		current = c.next(current)
	}

	return days
}

// Count implements Calendar.
func (c *TradingCalendar) Count(start time.Time, end time.Time) int {
	return len(c.TradingDays(start, end))
}

func (c *TradingCalendar) covers(day time.Time) bool {
	if len(c.days) == 0 {
		return false
	}

	return !day.Before(c.days[0]) && !day.After(c.days[len(c.days)-1])
}

func (c *TradingCalendar) floor(day time.Time) time.Time {
	if c.IsTradingDay(day) {
		return day
	}

	return c.prev(day)
}

func (c *TradingCalendar) next(day time.Time) time.Time {
	if c.covers(day) {
		i := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(day) })
		if i < len(c.days) {
			return c.days[i]
		}
	}

	for {
		day = day.AddDate(0, 0, 1)
		if c.IsTradingDay(day) {
			return day
		}
	}
}

func (c *TradingCalendar) prev(day time.Time) time.Time {
	if c.covers(day) {
		i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(day) })
		if i > 0 {
			return c.days[i-1]
		}
	}

	for {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			return day
		}
	}
}
