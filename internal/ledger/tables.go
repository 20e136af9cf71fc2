package ledger

import (
	"time"

	"github.com/google/btree"
	"github.com/rxtech-lab/argo-broker/internal/types"
)

const degree = 16

// maxSecurity sorts after every security code.
const maxSecurity = "\U0010FFFF"

// Series is a date-keyed table with at most one row per day.
type Series[T any] struct {
	tree  *btree.BTreeG[T]
	date  func(T) time.Time
	probe func(time.Time) T
}

func newSeries[T any](date func(T) time.Time, probe func(time.Time) T) *Series[T] {
	return &Series[T]{
		tree: btree.NewG[T](degree, func(a, b T) bool {
			return date(a).Before(date(b))
		}),
		date:  date,
		probe: probe,
	}
}

// CashTable is the cash balance per trading day.
type CashTable = Series[types.CashRow]

// AssetTable is the total assets per trading day.
type AssetTable = Series[types.AssetRow]

func NewCashTable(rows ...types.CashRow) *CashTable {
	table := newSeries(
		func(r types.CashRow) time.Time { return r.Date },
		func(d time.Time) types.CashRow { return types.CashRow{Date: d} },
	)

	for _, row := range rows {
		table.Set(row)
	}

	return table
}

func NewAssetTable(rows ...types.AssetRow) *AssetTable {
	table := newSeries(
		func(r types.AssetRow) time.Time { return r.Date },
		func(d time.Time) types.AssetRow { return types.AssetRow{Date: d} },
	)

	for _, row := range rows {
		table.Set(row)
	}

	return table
}

// Set inserts row, replacing the row of the same day.
func (s *Series[T]) Set(row T) {
	s.tree.ReplaceOrInsert(row)
}

// Get returns the row of day.
func (s *Series[T]) Get(day time.Time) (T, bool) {
	return s.tree.Get(s.probe(day))
}

// AsOf returns the latest row on or before day.
func (s *Series[T]) AsOf(day time.Time) (T, bool) {
	var (
		found T
		ok    bool
	)

	s.tree.DescendLessOrEqual(s.probe(day), func(row T) bool {
		found, ok = row, true

		return false
	})

	return found, ok
}

// Last returns the latest row.
func (s *Series[T]) Last() (T, bool) {
	return s.tree.Max()
}

// First returns the earliest row.
func (s *Series[T]) First() (T, bool) {
	return s.tree.Min()
}

func (s *Series[T]) Len() int {
	return s.tree.Len()
}

// Rows returns every row in date order.
func (s *Series[T]) Rows() []T {
	rows := make([]T, 0, s.tree.Len())
	s.tree.Ascend(func(row T) bool {
		rows = append(rows, row)

		return true
	})

	return rows
}

// Range returns the rows in [start, end] in date order.
func (s *Series[T]) Range(start time.Time, end time.Time) []T {
	var rows []T

	s.tree.AscendGreaterOrEqual(s.probe(start), func(row T) bool {
		if s.date(row).After(end) {
			return false
		}

		rows = append(rows, row)

		return true
	})

	return rows
}

// TruncateFrom deletes every row on or after day.
func (s *Series[T]) TruncateFrom(day time.Time) int {
	var doomed []T

	s.tree.AscendGreaterOrEqual(s.probe(day), func(row T) bool {
		doomed = append(doomed, row)

		return true
	})

	for _, row := range doomed {
		s.tree.Delete(row)
	}

	return len(doomed)
}

// PositionTable holds one row per security per day, or a sentinel row on a
// day without holdings.
type PositionTable struct {
	tree *btree.BTreeG[types.PositionRow]
}

func positionLess(a, b types.PositionRow) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}

	return a.Security < b.Security
}

func NewPositionTable(rows ...types.PositionRow) *PositionTable {
	table := &PositionTable{tree: btree.NewG[types.PositionRow](degree, positionLess)}
	for _, row := range rows {
		table.tree.ReplaceOrInsert(row)
	}

	return table
}

// LastDate returns the latest day with rows.
func (p *PositionTable) LastDate() (time.Time, bool) {
	row, ok := p.tree.Max()

	return row.Date, ok
}

// Day returns the rows recorded for day.
func (p *PositionTable) Day(day time.Time) []types.PositionRow {
	var rows []types.PositionRow

	p.tree.AscendRange(
		types.PositionRow{Date: day},
		types.PositionRow{Date: day, Security: maxSecurity},
		func(row types.PositionRow) bool {
			rows = append(rows, row)

			return true
		},
	)

	return rows
}

// AsOf returns the latest recorded day on or before day and its rows.
func (p *PositionTable) AsOf(day time.Time) (time.Time, []types.PositionRow, bool) {
	var (
		latest time.Time
		ok     bool
	)

	p.tree.DescendLessOrEqual(types.PositionRow{Date: day, Security: maxSecurity}, func(row types.PositionRow) bool {
		latest, ok = row.Date, true

		return false
	})

	if !ok {
		return time.Time{}, nil, false
	}

	return latest, p.Day(latest), true
}

// SetDay replaces the rows of day. An empty holding is stored as a sentinel row.
func (p *PositionTable) SetDay(day time.Time, rows []types.PositionRow) {
	for _, old := range p.Day(day) {
		p.tree.Delete(old)
	}

	held := false

	for _, row := range rows {
		if row.IsSentinel() {
			continue
		}

		row.Date = day
		p.tree.ReplaceOrInsert(row)
		held = true
	}

	if !held {
		p.tree.ReplaceOrInsert(types.PositionRow{Date: day})
	}
}

// TruncateFrom deletes every row on or after day.
func (p *PositionTable) TruncateFrom(day time.Time) int {
	var doomed []types.PositionRow

	p.tree.AscendGreaterOrEqual(types.PositionRow{Date: day}, func(row types.PositionRow) bool {
		doomed = append(doomed, row)

		return true
	})

	for _, row := range doomed {
		p.tree.Delete(row)
	}

	return len(doomed)
}

func (p *PositionTable) Len() int {
	return p.tree.Len()
}

// Rows returns every row ordered by day and security.
func (p *PositionTable) Rows() []types.PositionRow {
	rows := make([]types.PositionRow, 0, p.tree.Len())
	p.tree.Ascend(func(row types.PositionRow) bool {
		rows = append(rows, row)

		return true
	})

	return rows
}
