package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/logging"
	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/internal/yields"
)

func day(s string) time.Time {
	t, err := time.Parse(series.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

var fixtureDates = []string{"2024-01-02", "2024-01-03", "2024-01-08", "2024-01-09", "2024-01-10"}

// writeFixture lays out four snapshots over two weeks of January 2024.
// A negative value marks a missing observation.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := map[string][]float64{
		"FF":     {5.33, 5.33, 5.33, 5.33, 5.33},
		"DGS3MO": {5.40, 5.42, 5.38, -1, 5.36},
		"DGS2":   {4.33, 4.30, 4.36, 4.38, 4.37},
		"DGS10":  {3.95, 3.91, 4.01, 4.02, 4.03},
	}
	for id, vals := range data {
		obs := make([]series.Observation, len(vals))
		for i, v := range vals {
			obs[i] = series.Observation{Date: day(fixtureDates[i]), Value: v, Missing: v < 0}
		}
		require.NoError(t, series.WriteFile(filepath.Join(dir, id+".csv"), id, obs))
	}
	return dir
}

func newService(t *testing.T, dir string, opts ...Option) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Dir = dir
	cfg.Data.Series = []string{"FF", "DGS3MO", "DGS2", "DGS10"}
	return New(cfg, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func label(t *testing.T, s string) maturity.Duration {
	t.Helper()
	d, err := maturity.ParseLabel(s)
	require.NoError(t, err)
	return d
}

func TestYieldSpread(t *testing.T) {
	m := metrics.New()
	svc := newService(t, writeFixture(t), WithMetrics(m))
	ctx := context.Background()

	c, err := svc.YieldSpread(ctx, svc.DefaultConfig(YieldSpreadChart), svc.DefaultPair())
	require.NoError(t, err)

	assert.Equal(t, "yield_spread", c.ID)
	assert.Equal(t, "Yield Differential: 10-year - 2-year", c.Title)
	require.Len(t, c.Series, 1)
	pts := c.Series[0].Points
	require.Len(t, pts, 2)
	assert.Equal(t, day("2024-01-07"), pts[0].Date, "weeks end on Sunday")
	assert.InDelta(t, 3.93-4.315, pts[0].Value, 1e-9)
	assert.InDelta(t, 4.02-4.37, pts[1].Value, 1e-9)
	require.Len(t, c.Rules, 1)
	assert.Equal(t, 0.0, c.Rules[0].Value)
	for _, e := range c.Events {
		assert.Equal(t, "recession_start", e.Category)
	}
	assert.NotEmpty(t, c.Events)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesLoaded.WithLabelValues("10-year")))

	// order of the pair does not matter
	swapped, err := svc.YieldSpread(ctx, svc.DefaultConfig(YieldSpreadChart), Pair{Long: label(t, "2-year"), Short: label(t, "10-year")})
	require.NoError(t, err)
	assert.Equal(t, c.Title, swapped.Title)
	assert.InDelta(t, pts[0].Value, swapped.Series[0].Points[0].Value, 1e-9)
}

func TestYieldSpreadErrors(t *testing.T) {
	svc := newService(t, writeFixture(t))
	ctx := context.Background()
	cfg := svc.DefaultConfig(YieldSpreadChart)

	_, err := svc.YieldSpread(ctx, cfg, Pair{Long: label(t, "30-year"), Short: label(t, "2-year")})
	var ime *yields.InvalidMaturityError
	assert.ErrorAs(t, err, &ime)

	_, err = svc.YieldSpread(ctx, cfg, Pair{Long: label(t, "2-year"), Short: label(t, "2-year")})
	var ve *yields.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestYieldRange(t *testing.T) {
	svc := newService(t, writeFixture(t))
	c, err := svc.YieldRange(context.Background(), svc.DefaultConfig(YieldRangeChart))
	require.NoError(t, err)

	assert.Equal(t, "High-Low Spread", c.YTitle)
	pts := c.Series[0].Points
	require.Len(t, pts, 2)
	assert.InDelta(t, 5.41-3.93, pts[0].Value, 1e-9)
	assert.InDelta(t, 5.37-4.02, pts[1].Value, 1e-9)

	cats := map[string]bool{}
	for _, e := range c.Events {
		cats[e.Category] = true
	}
	assert.Equal(t, map[string]bool{"recession_start": true, "recession_end": true}, cats)
}

func TestLowestYielding(t *testing.T) {
	svc := newService(t, writeFixture(t))
	c, err := svc.LowestYielding(context.Background(), svc.DefaultConfig(LowestYieldingChart))
	require.NoError(t, err)

	assert.Equal(t, "Lowest Yielding Maturity (FF, 3mo, 2yr, 10yr)", c.Title)
	require.Len(t, c.Series, 2)
	assert.Equal(t, "Lowest Yielding Duration", c.Series[0].Name)
	assert.Equal(t, "Fed Funds Rate", c.Series[1].Name)
	assert.Equal(t, c.Series[0].Len(), c.Series[1].Len(), "inner join keeps shared dates only")
	for _, p := range c.Series[0].Points {
		assert.Equal(t, 10.0, p.Value)
	}
	assert.InDelta(t, 5.33, c.Series[1].Points[0].Value, 1e-9)
}

func TestLowestYieldingWithoutFedFunds(t *testing.T) {
	svc := newService(t, writeFixture(t))
	cfg := svc.DefaultConfig(LowestYieldingChart)
	cfg.Maturities = []maturity.Duration{label(t, "2-year"), label(t, "10-year")}

	c, err := svc.LowestYielding(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "Lowest Yielding Maturity (2yr, 10yr)", c.Title)
	assert.Len(t, c.Series, 2, "fed funds is drawn from the full set")
}

func TestHighestYielding(t *testing.T) {
	svc := newService(t, writeFixture(t))
	cfg := svc.DefaultConfig(HighestYieldingChart)
	assert.Equal(t, series.MonthEnd, cfg.Interval)

	c, err := svc.HighestYielding(context.Background(), cfg)
	require.NoError(t, err)
	pts := c.Series[0].Points
	require.Len(t, pts, 1)
	assert.Equal(t, day("2024-01-31"), pts[0].Date)
	assert.Equal(t, 0.25, pts[0].Value)
}

func TestTreasuryRates(t *testing.T) {
	svc := newService(t, writeFixture(t))
	ctx := context.Background()

	c, err := svc.TreasuryRates(ctx, svc.DefaultConfig(TreasuryRatesChart))
	require.NoError(t, err)
	require.Len(t, c.Series, 4)
	assert.Equal(t, "Fed Funds Rate", c.Series[0].Name)
	assert.Equal(t, "10-year", c.Series[3].Name)

	cfg := svc.DefaultConfig(TreasuryRatesChart)
	cfg.Maturities = []maturity.Duration{label(t, "10-year")}
	cfg.Interval = series.Daily
	cfg.Start = day("2024-01-08")
	c, err = svc.TreasuryRates(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, c.Series, 1)
	assert.Len(t, c.Series[0].Points, 3)
}

func TestBuildAndAll(t *testing.T) {
	svc := newService(t, writeFixture(t))
	ctx := context.Background()

	charts, errs := svc.All(ctx)
	assert.Empty(t, errs)
	require.Len(t, charts, len(Charts))
	for i, id := range Charts {
		assert.Equal(t, string(id), charts[i].ID)
	}

	_, err := svc.Build(ctx, ChartID("nope"), ChartConfig{}, Pair{})
	var ve *yields.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestParseChartID(t *testing.T) {
	id, err := ParseChartID(" Lowest_Yielding ")
	require.NoError(t, err)
	assert.Equal(t, LowestYieldingChart, id)

	_, err = ParseChartID("pie")
	assert.Error(t, err)
}

func TestMissingData(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "absent"))
	_, err := svc.TreasuryRates(context.Background(), svc.DefaultConfig(TreasuryRatesChart))
	var due *yields.DataUnavailableError
	assert.True(t, errors.As(err, &due), "got %v", err)
}

func TestCompareCurves(t *testing.T) {
	svc := newService(t, writeFixture(t))
	ctx := context.Background()

	cmp, err := svc.CompareCurves(ctx, day("2024-01-07"), day("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-03"), cmp.First.Date)
	assert.Equal(t, day("2024-01-10"), cmp.Second.Date)
	assert.Equal(t, []string{"0-month", "3-month", "2-year", "10-year"}, cmp.Durations)
	assert.Equal(t, "Date Difference: 3 days", cmp.DifferenceText)

	_, err = svc.CompareCurves(ctx, day("2024-01-06"), day("2024-01-07"))
	var ve *yields.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "weekends")

	_, err = svc.CompareCurves(ctx, day("1970-01-02"), day("2024-01-10"))
	assert.ErrorAs(t, err, &ve)
}

func TestLatestDate(t *testing.T) {
	svc := newService(t, writeFixture(t))
	latest, err := svc.LatestDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-10"), latest)
}

func TestSeries(t *testing.T) {
	svc := newService(t, writeFixture(t))
	ctx := context.Background()

	all, err := svc.Series(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "0-month", all[0].Label.String())

	only, err := svc.Series(ctx, label(t, "3-month"))
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 5, only[0].Len(), "raw snapshot, no resampling")
	assert.Equal(t, 4, only[0].Valid())
}
