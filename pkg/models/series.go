package models

import "time"

// --- Derived yield series ---

// Point is a single dated value handed to the presentation layer.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// NamedSeries is a date-indexed series with a human-readable name.
type NamedSeries struct {
	Name   string  `json:"name"`
	Color  string  `json:"color,omitempty"`
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (s NamedSeries) Len() int { return len(s.Points) }

// Span returns the first and last dates of the series.
func (s NamedSeries) Span() (time.Time, time.Time, bool) {
	if len(s.Points) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.Points[0].Date, s.Points[len(s.Points)-1].Date, true
}

// EventMarker is a vertical overlay rule on a time chart.
type EventMarker struct {
	Date     time.Time `json:"date"`
	Category string    `json:"category"` // "recession_start", "market_peak", ...
	Label    string    `json:"label"`    // legend text, e.g. "Recession Starts"
	Color    string    `json:"color"`
}

// CurvePoint is one maturity on a dated yield curve.
type CurvePoint struct {
	Duration string  `json:"duration"` // "3-month", "10-year"
	Years    float64 `json:"years"`
	Yield    float64 `json:"yield"`
}

// DatedCurve is the yield curve observed on one trading day.
type DatedCurve struct {
	Requested time.Time    `json:"requested"`
	Date      time.Time    `json:"date"` // trading day the curve was taken from
	Points    []CurvePoint `json:"points"`
}

// Headline is one Federal Reserve press release shown beside the charts.
type Headline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Chart is an assembled time chart: lines, vertical event rules and
// horizontal reference rules.
type Chart struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	YTitle string        `json:"y_title"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Series []NamedSeries `json:"series"`
	Events []EventMarker `json:"events,omitempty"`
	Rules  []Rule        `json:"rules,omitempty"`
}

// Rule is a horizontal reference line, such as the zero line of a spread.
type Rule struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}
