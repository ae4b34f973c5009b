// Package events holds the curated historical dates drawn as overlay rules
// on the dashboard charts.
package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/yieldcharts/pkg/models"
)

// Category groups annotations that share a legend entry.
type Category string

const (
	RecessionStart Category = "recession_start"
	RecessionEnd   Category = "recession_end"
	MarketPeak     Category = "market_peak"
	MarketTrough   Category = "market_trough"
)

// Categories lists every category in legend order.
var Categories = []Category{RecessionStart, RecessionEnd, MarketPeak, MarketTrough}

// Label is the legend text.
func (c Category) Label() string {
	switch c {
	case RecessionStart:
		return "Recession Starts"
	case RecessionEnd:
		return "Recession Ends"
	case MarketPeak:
		return "S&P 500 Peaks"
	case MarketTrough:
		return "S&P 500 Troughs"
	}
	return string(c)
}

// Color is the rule stroke used by the charts.
func (c Category) Color() string {
	switch c {
	case RecessionStart:
		return "red"
	case RecessionEnd:
		return "blue"
	case MarketPeak:
		return "greenyellow"
	case MarketTrough:
		return "gray"
	}
	return "black"
}

// ParseCategory accepts a category name, with a few short aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recession_start", "recession-start", "recessions", "recession":
		return RecessionStart, nil
	case "recession_end", "recession-end", "recession_ends":
		return RecessionEnd, nil
	case "market_peak", "market-peak", "peaks", "sp500_peak":
		return MarketPeak, nil
	case "market_trough", "market-trough", "troughs", "sp500_trough":
		return MarketTrough, nil
	}
	return "", fmt.Errorf("unknown event category %q", s)
}

// Annotation is one dated event.
type Annotation struct {
	Date     time.Time
	Category Category
}

// Marker converts the annotation to its presentation shape.
func (a Annotation) Marker() models.EventMarker {
	return models.EventMarker{Date: a.Date, Category: string(a.Category), Label: a.Category.Label(), Color: a.Category.Color()}
}

var table = map[Category][]string{
	RecessionStart: {"2020-03-30", "2007-12-01", "2001-03-01", "1990-07-01", "1981-07-01", "1980-01-01", "1973-11-01", "1969-12-01"},
	RecessionEnd:   {"2020-04-30", "2009-06-01", "2001-11-01", "1991-03-01", "1982-11-01", "1975-03-01", "1970-11-01"},
	MarketPeak:     {"2022-01-01", "2020-02-01", "2007-10-01", "2000-03-01", "1987-08-01", "1980-11-01", "1973-01-01", "1968-11-01"},
	MarketTrough:   {"2022-10-01", "2020-03-01", "2009-03-01", "2002-10-01", "1987-12-01", "1982-08-01", "1974-10-01", "1970-05-01"},
}

// For returns the annotations of the given categories sorted by date (then
// category order). No categories means all of them.
func For(categories ...Category) []Annotation {
	if len(categories) == 0 {
		categories = Categories
	}
	var out []Annotation
	seen := make(map[Category]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		for _, s := range table[c] {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				panic(fmt.Sprintf("events: bad date %q in %s", s, c))
			}
			out = append(out, Annotation{Date: d, Category: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return rank(out[i].Category) < rank(out[j].Category)
	})
	return out
}

func rank(c Category) int {
	for i, x := range Categories {
		if x == c {
			return i
		}
	}
	return len(Categories)
}

// Between keeps the annotations dated within [start, end]. A zero bound is
// open.
func Between(list []Annotation, start, end time.Time) []Annotation {
	var out []Annotation
	for _, a := range list {
		if !start.IsZero() && a.Date.Before(start) {
			continue
		}
		if !end.IsZero() && a.Date.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Markers converts a list of annotations for presentation.
func Markers(list []Annotation) []models.EventMarker {
	out := make([]models.EventMarker, len(list))
	for i, a := range list {
		out[i] = a.Marker()
	}
	return out
}
