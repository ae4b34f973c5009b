// Package yields joins per-maturity series into a wide date-by-maturity table
// and derives the dashboard's analytic series from it.
package yields

import (
	"sort"
	"time"

	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/series"
)

// Join selects how Combine builds the row index.
type Join int

const (
	// OuterJoin keeps every date present in any input.
	OuterJoin Join = iota
	// InnerJoin keeps only dates present in every input.
	InnerJoin
)

func (j Join) String() string {
	if j == InnerJoin {
		return "inner"
	}
	return "outer"
}

// Cell is one table entry. Valid is false for a gap.
type Cell struct {
	Value float64
	Valid bool
}

// WideYieldTable is an immutable date-by-maturity grid. Columns are ordered
// by duration and rows by date, with no duplicates in either.
type WideYieldTable struct {
	dates   []time.Time
	columns []maturity.Duration
	cells   [][]Cell // [row][column]
}

// Combine merges the series into one table. Every label must be unique;
// a collision is a *ValidationError rather than a silent overwrite.
func Combine(list []series.MaturitySeries, join Join) (*WideYieldTable, error) {
	seen := make(map[maturity.Duration]bool, len(list))
	for _, s := range list {
		if seen[s.Label] {
			return nil, &ValidationError{Field: "series", Message: "duplicate duration label " + s.Label.String()}
		}
		seen[s.Label] = true
	}

	sorted := make([]series.MaturitySeries, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Label.Less(sorted[j].Label) })

	t := &WideYieldTable{columns: make([]maturity.Duration, len(sorted))}
	for i, s := range sorted {
		t.columns[i] = s.Label
	}
	if len(sorted) == 0 {
		return t, nil
	}

	count := make(map[time.Time]int)
	for _, s := range sorted {
		for _, o := range s.Observations {
			count[o.Date]++
		}
	}
	for d, n := range count {
		if join == InnerJoin && n < len(sorted) {
			continue
		}
		t.dates = append(t.dates, d)
	}
	sort.Slice(t.dates, func(i, j int) bool { return t.dates[i].Before(t.dates[j]) })

	row := make(map[time.Time]int, len(t.dates))
	t.cells = make([][]Cell, len(t.dates))
	for i, d := range t.dates {
		row[d] = i
		t.cells[i] = make([]Cell, len(t.columns))
	}
	for c, s := range sorted {
		for _, o := range s.Observations {
			r, ok := row[o.Date]
			if !ok || o.Missing {
				continue
			}
			t.cells[r][c] = Cell{Value: o.Value, Valid: true}
		}
	}
	return t, nil
}

// Rows returns the number of dates.
func (t *WideYieldTable) Rows() int { return len(t.dates) }

// Dates returns a copy of the row index.
func (t *WideYieldTable) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Columns returns a copy of the column labels in order.
func (t *WideYieldTable) Columns() []maturity.Duration {
	out := make([]maturity.Duration, len(t.columns))
	copy(out, t.columns)
	return out
}

// Row returns a copy of row i.
func (t *WideYieldTable) Row(i int) []Cell {
	out := make([]Cell, len(t.cells[i]))
	copy(out, t.cells[i])
	return out
}

// Has reports whether d is a column.
func (t *WideYieldTable) Has(d maturity.Duration) bool {
	return t.column(d) >= 0
}

// Cell returns the entry at row i for duration d.
func (t *WideYieldTable) Cell(i int, d maturity.Duration) (Cell, bool) {
	c := t.column(d)
	if c < 0 || i < 0 || i >= len(t.dates) {
		return Cell{}, false
	}
	return t.cells[i][c], true
}

// Column extracts d as a series over the table's row index.
func (t *WideYieldTable) Column(d maturity.Duration) (series.MaturitySeries, bool) {
	c := t.column(d)
	if c < 0 {
		return series.MaturitySeries{}, false
	}
	s := series.MaturitySeries{Label: d, Observations: make([]series.Observation, len(t.dates))}
	for i, date := range t.dates {
		cell := t.cells[i][c]
		s.Observations[i] = series.Observation{Date: date, Value: cell.Value, Missing: !cell.Valid}
	}
	return s, true
}

func (t *WideYieldTable) column(d maturity.Duration) int {
	for i, c := range t.columns {
		if c == d {
			return i
		}
	}
	return -1
}
