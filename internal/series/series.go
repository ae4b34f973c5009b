// Package series reads per-maturity observation snapshots and resamples them
// onto a common time axis.
package series

import (
	"sort"
	"time"

	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/pkg/models"
)

// Observation is one dated yield. Missing marks a blank cell in the source;
// Value is meaningless when Missing is set.
type Observation struct {
	Date    time.Time
	Value   float64
	Missing bool
}

// MaturitySeries is the observation history of one maturity. Dates are
// strictly increasing, UTC midnight.
type MaturitySeries struct {
	Label        maturity.Duration
	Observations []Observation
}

// Len returns the number of observations, missing ones included.
func (s MaturitySeries) Len() int { return len(s.Observations) }

// Valid returns the number of non-missing observations.
func (s MaturitySeries) Valid() int {
	n := 0
	for _, o := range s.Observations {
		if !o.Missing {
			n++
		}
	}
	return n
}

// Last returns the newest non-missing observation.
func (s MaturitySeries) Last() (Observation, bool) {
	for i := len(s.Observations) - 1; i >= 0; i-- {
		if !s.Observations[i].Missing {
			return s.Observations[i], true
		}
	}
	return Observation{}, false
}

// At returns the observation dated exactly d.
func (s MaturitySeries) At(d time.Time) (Observation, bool) {
	d = Day(d)
	lo, hi := 0, len(s.Observations)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Observations[mid].Date.Before(d) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.Observations) && s.Observations[lo].Date.Equal(d) {
		return s.Observations[lo], true
	}
	return Observation{}, false
}

// Between returns the observations dated within [start, end]. A zero bound
// is open.
func (s MaturitySeries) Between(start, end time.Time) MaturitySeries {
	out := MaturitySeries{Label: s.Label}
	for _, o := range s.Observations {
		if !start.IsZero() && o.Date.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && o.Date.After(Day(end)) {
			continue
		}
		out.Observations = append(out.Observations, o)
	}
	return out
}

// Named converts the series to the presentation shape, dropping missing
// observations.
func (s MaturitySeries) Named(name string) models.NamedSeries {
	if name == "" {
		name = s.Label.String()
	}
	ns := models.NamedSeries{Name: name, Points: make([]models.Point, 0, len(s.Observations))}
	for _, o := range s.Observations {
		if o.Missing {
			continue
		}
		ns.Points = append(ns.Points, models.Point{Date: o.Date, Value: o.Value})
	}
	return ns
}

// Day truncates t to UTC midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortByDuration orders list by maturity, shortest first.
func SortByDuration(list []MaturitySeries) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Label.Less(list[j].Label) })
}
