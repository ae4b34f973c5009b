package dashboard

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seenimoa/yieldcharts/internal/telemetry"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// CompareMinDate is the earliest date the compare page accepts.
var CompareMinDate = time.Date(1976, time.June, 1, 0, 0, 0, 0, time.UTC)

// Comparison is two yield curves on a shared axis plus the calendar
// distance between the requested dates.
type Comparison struct {
	yields.CurveComparison
	Difference     utils.DateDiff `json:"difference"`
	DifferenceText string         `json:"difference_text"`
}

// CompareCurves loads the daily series and compares the curves on d1 and
// d2. Dates before CompareMinDate are a *yields.ValidationError.
func (s *Service) CompareCurves(ctx context.Context, d1, d2 time.Time) (cmp Comparison, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chart.compare", trace.WithAttributes(
		attribute.String("date1", utils.FormatDate(d1)),
		attribute.String("date2", utils.FormatDate(d2)),
	))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.ObservePipeline("compare", start)
	}()

	for _, d := range []time.Time{d1, d2} {
		if d.Before(CompareMinDate) {
			return Comparison{}, &yields.ValidationError{Field: "date", Message: "dates before " + utils.FormatDate(CompareMinDate) + " are not available"}
		}
	}

	set, err := s.loadSet(ctx)
	if err != nil {
		return Comparison{}, err
	}
	c, err := yields.CompareCurves(set.Series, d1, d2)
	if err != nil {
		return Comparison{}, err
	}
	diff := utils.DateDifference(d1, d2)
	return Comparison{CurveComparison: c, Difference: diff, DifferenceText: diff.String()}, nil
}

// LatestDate returns the most recent date on which any series has a value.
func (s *Service) LatestDate(ctx context.Context) (time.Time, error) {
	set, err := s.loadSet(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var latest time.Time
	for _, ms := range set.Series {
		for i := len(ms.Observations) - 1; i >= 0; i-- {
			if o := ms.Observations[i]; !o.Missing {
				if o.Date.After(latest) {
					latest = o.Date
				}
				break
			}
		}
	}
	if latest.IsZero() {
		return latest, &yields.DataUnavailableError{What: "yield data", Reason: "every series is empty"}
	}
	return latest, nil
}
