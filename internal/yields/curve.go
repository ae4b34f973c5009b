package yields

import (
	"math"
	"time"

	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/pkg/models"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// CurveAt returns the yield curve on the latest day at or before date on
// which any maturity has a valid observation. Points are ordered by
// duration.
func CurveAt(list []series.MaturitySeries, date time.Time) (models.DatedCurve, error) {
	date = series.Day(date)
	curve := models.DatedCurve{Requested: date}

	var resolved time.Time
	for _, s := range list {
		if o, ok := lastOnOrBefore(s, date); ok && o.Date.After(resolved) {
			resolved = o.Date
		}
	}
	if resolved.IsZero() {
		return curve, &DataUnavailableError{What: "yield curve " + date.Format(series.DateLayout), Reason: "no observations on or before that date"}
	}
	curve.Date = resolved

	sorted := make([]series.MaturitySeries, len(list))
	copy(sorted, list)
	series.SortByDuration(sorted)
	for _, s := range sorted {
		o, ok := s.At(resolved)
		if !ok || o.Missing {
			continue
		}
		curve.Points = append(curve.Points, models.CurvePoint{
			Duration: s.Label.String(),
			Years:    s.Label.Years(),
			Yield:    o.Value,
		})
	}
	return curve, nil
}

func lastOnOrBefore(s series.MaturitySeries, date time.Time) (series.Observation, bool) {
	for i := len(s.Observations) - 1; i >= 0; i-- {
		o := s.Observations[i]
		if o.Date.After(date) || o.Missing {
			continue
		}
		return o, true
	}
	return series.Observation{}, false
}

// CurveComparison is two dated curves drawn on a shared axis.
type CurveComparison struct {
	First  models.DatedCurve `json:"first"`
	Second models.DatedCurve `json:"second"`
	// Durations present on both dates, in order.
	Durations []string `json:"durations"`
	YMin      float64  `json:"y_min"`
	YMax      float64  `json:"y_max"`
}

// CompareCurves resolves both dates to trading days and pairs their curves.
// Two requests landing on the same trading day are a *ValidationError.
func CompareCurves(list []series.MaturitySeries, d1, d2 time.Time) (CurveComparison, error) {
	first, err := CurveAt(list, d1)
	if err != nil {
		return CurveComparison{}, err
	}
	second, err := CurveAt(list, d2)
	if err != nil {
		return CurveComparison{}, err
	}

	if first.Date.Equal(second.Date) {
		if utils.IsWeekend(second.Requested) || utils.IsWeekend(first.Requested) {
			return CurveComparison{}, &ValidationError{Field: "date", Message: "do not select weekends / non trading days"}
		}
		return CurveComparison{}, &ValidationError{Field: "date", Message: "dates cannot match"}
	}

	cmp := CurveComparison{First: first, Second: second}

	onSecond := make(map[string]bool, len(second.Points))
	for _, p := range second.Points {
		onSecond[p.Duration] = true
	}
	for _, p := range first.Points {
		if onSecond[p.Duration] {
			cmp.Durations = append(cmp.Durations, p.Duration)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range []models.DatedCurve{first, second} {
		for _, p := range c.Points {
			lo = math.Min(lo, p.Yield)
			hi = math.Max(hi, p.Yield)
		}
	}
	cmp.YMin = math.Floor(lo*10) / 10
	cmp.YMax = math.Ceil(hi*10) / 10
	return cmp, nil
}

// Durations lists the labels of list in curve order.
func Durations(list []series.MaturitySeries) []maturity.Duration {
	return labels(list)
}
