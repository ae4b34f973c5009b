package yields

import (
	"fmt"
	"time"

	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/pkg/models"
)

// SpreadPoint is one row of a spread series.
type SpreadPoint struct {
	Date   time.Time
	Spread float64
}

// SpreadSeries is a dated difference between yields. Rows missing a side of
// the subtraction are absent.
type SpreadSeries struct {
	Name string
	Rows []SpreadPoint
}

// Named converts the spread to its presentation shape.
func (s SpreadSeries) Named() models.NamedSeries {
	ns := models.NamedSeries{Name: s.Name, Points: make([]models.Point, len(s.Rows))}
	for i, r := range s.Rows {
		ns.Points[i] = models.Point{Date: r.Date, Value: r.Spread}
	}
	return ns
}

// Extremum picks which end of each row ExtremumDurations reports.
type Extremum int

const (
	Lowest Extremum = iota
	Highest
)

func (e Extremum) String() string {
	if e == Highest {
		return "highest"
	}
	return "lowest"
}

// ExtremaPoint names the maturity that held the row's extreme yield.
type ExtremaPoint struct {
	Date     time.Time
	Duration maturity.Duration
	Years    float64 // Duration.Years(), never interpolated
	Yield    float64
}

// DerivedExtremaSeries is the per-date identity of the lowest or highest
// yielding maturity.
type DerivedExtremaSeries struct {
	Name string
	Kind Extremum
	Rows []ExtremaPoint
}

// Named converts the series to its presentation shape, valued in years.
func (s DerivedExtremaSeries) Named() models.NamedSeries {
	ns := models.NamedSeries{Name: s.Name, Points: make([]models.Point, len(s.Rows))}
	for i, r := range s.Rows {
		ns.Points[i] = models.Point{Date: r.Date, Value: r.Years}
	}
	return ns
}

// HighLowSpread is max minus min of each row's valid cells. Rows with fewer
// than two valid cells are left out.
func HighLowSpread(t *WideYieldTable) SpreadSeries {
	out := SpreadSeries{Name: "Min Max Spread"}
	for i, date := range t.dates {
		lo, hi, n := rowRange(t.cells[i])
		if n < 2 {
			continue
		}
		out.Rows = append(out.Rows, SpreadPoint{Date: date, Spread: hi - lo})
	}
	return out
}

// RowExtremes returns the highest and lowest yield of every row that has at
// least one valid cell.
func RowExtremes(t *WideYieldTable) (high, low models.NamedSeries) {
	high.Name, low.Name = "Highest Yield", "Lowest Yield"
	for i, date := range t.dates {
		lo, hi, n := rowRange(t.cells[i])
		if n == 0 {
			continue
		}
		high.Points = append(high.Points, models.Point{Date: date, Value: hi})
		low.Points = append(low.Points, models.Point{Date: date, Value: lo})
	}
	return high, low
}

func rowRange(row []Cell) (lo, hi float64, n int) {
	for _, c := range row {
		if !c.Valid {
			continue
		}
		if n == 0 || c.Value < lo {
			lo = c.Value
		}
		if n == 0 || c.Value > hi {
			hi = c.Value
		}
		n++
	}
	return lo, hi, n
}

// ExtremumDurations reports, per row, the maturity holding the lowest or
// highest yield. Exact ties go to the shorter maturity (then the smaller
// label), independent of input order. Rows without a valid cell are dropped.
func ExtremumDurations(t *WideYieldTable, kind Extremum) (DerivedExtremaSeries, error) {
	out := DerivedExtremaSeries{Name: kind.String() + "_rate_duration", Kind: kind}
	for i, date := range t.dates {
		best := -1
		for c, cell := range t.cells[i] {
			if !cell.Valid {
				continue
			}
			// columns are already in tie-break order, so only a strict
			// improvement replaces the current winner
			if best < 0 ||
				(kind == Lowest && cell.Value < t.cells[i][best].Value) ||
				(kind == Highest && cell.Value > t.cells[i][best].Value) {
				best = c
			}
		}
		if best < 0 {
			continue
		}
		d := t.columns[best]
		out.Rows = append(out.Rows, ExtremaPoint{
			Date:     date,
			Duration: d,
			Years:    d.Years(),
			Yield:    t.cells[i][best].Value,
		})
	}
	if len(out.Rows) == 0 {
		return out, &DataUnavailableError{What: out.Name, Reason: "no row has a valid yield"}
	}
	return out, nil
}

// Differential is yield(longer) minus yield(shorter) for the two durations,
// whichever order they are given in. Rows missing either side are dropped.
func Differential(t *WideYieldTable, d1, d2 maturity.Duration) (SpreadSeries, error) {
	if d1 == d2 {
		return SpreadSeries{}, &ValidationError{Field: "maturities", Message: "differential needs two different durations, got " + d1.String() + " twice"}
	}
	for _, d := range []maturity.Duration{d1, d2} {
		if !t.Has(d) {
			return SpreadSeries{}, &InvalidMaturityError{Label: d.String(), Available: t.Columns()}
		}
	}

	long, short := d1, d2
	if long.Less(short) {
		long, short = short, long
	}
	lc, sc := t.column(long), t.column(short)

	out := SpreadSeries{Name: fmt.Sprintf("%s - %s", long, short)}
	for i, date := range t.dates {
		l, s := t.cells[i][lc], t.cells[i][sc]
		if !l.Valid || !s.Valid {
			continue
		}
		out.Rows = append(out.Rows, SpreadPoint{Date: date, Spread: l.Value - s.Value})
	}
	if len(out.Rows) == 0 {
		return out, &DataUnavailableError{What: out.Name, Reason: "the two maturities share no observed dates"}
	}
	return out, nil
}

// DifferentialFromSeries picks d1 and d2 out of list, inner-joins them and
// computes their Differential.
func DifferentialFromSeries(list []series.MaturitySeries, d1, d2 maturity.Duration) (SpreadSeries, error) {
	if d1 == d2 {
		return SpreadSeries{}, &ValidationError{Field: "maturities", Message: "differential needs two different durations, got " + d1.String() + " twice"}
	}
	pair := make([]series.MaturitySeries, 0, 2)
	for _, d := range []maturity.Duration{d1, d2} {
		s, ok := find(list, d)
		if !ok {
			return SpreadSeries{}, &InvalidMaturityError{Label: d.String(), Available: labels(list)}
		}
		pair = append(pair, s)
	}
	t, err := Combine(pair, InnerJoin)
	if err != nil {
		return SpreadSeries{}, err
	}
	return Differential(t, d1, d2)
}

func find(list []series.MaturitySeries, d maturity.Duration) (series.MaturitySeries, bool) {
	for _, s := range list {
		if s.Label == d {
			return s, true
		}
	}
	return series.MaturitySeries{}, false
}

func labels(list []series.MaturitySeries) []maturity.Duration {
	out := make([]maturity.Duration, len(list))
	for i, s := range list {
		out[i] = s.Label
	}
	maturity.Sort(out)
	return out
}
