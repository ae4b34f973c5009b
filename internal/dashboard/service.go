// Package dashboard assembles the charts shown on the dashboard. Every
// call takes its ChartConfig explicitly, re-reads the snapshots and
// recomputes; nothing derived is kept between calls.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/events"
	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/internal/telemetry"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/models"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// ChartID names a dashboard chart.
type ChartID string

const (
	YieldSpreadChart     ChartID = "yield_spread"
	YieldRangeChart      ChartID = "yield_range"
	LowestYieldingChart  ChartID = "lowest_yielding"
	HighestYieldingChart ChartID = "highest_yielding"
	TreasuryRatesChart   ChartID = "treasury_rates"
)

// Charts lists the charts in page order.
var Charts = []ChartID{YieldSpreadChart, YieldRangeChart, LowestYieldingChart, HighestYieldingChart, TreasuryRatesChart}

// ParseChartID validates s.
func ParseChartID(s string) (ChartID, error) {
	id := ChartID(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Charts {
		if c == id {
			return id, nil
		}
	}
	return "", &yields.ValidationError{Field: "chart", Message: fmt.Sprintf("unknown chart %q", s)}
}

// ChartConfig selects the data behind one chart.
type ChartConfig struct {
	// Maturities restricts the loaded columns; empty means all.
	Maturities []maturity.Duration
	Interval   series.Interval
	// Start and End trim the output; zero is open.
	Start    time.Time
	End      time.Time
	FillGaps bool
}

// Pair is the two maturities of a differential.
type Pair struct {
	Long  maturity.Duration
	Short maturity.Duration
}

// Service builds charts from the snapshot directory.
type Service struct {
	dir string
	ids []string

	mu       sync.RWMutex
	defaults config.ChartsConfig

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics records load and pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithTracer opens a span per chart build.
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// New creates a Service over cfg's data directory.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		dir:      cfg.Data.Dir,
		ids:      cfg.Data.Series,
		defaults: cfg.Charts,
		logger:   slog.Default(),
		tracer:   telemetry.Noop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetDefaults replaces the chart defaults for subsequent calls.
func (s *Service) SetDefaults(c config.ChartsConfig) {
	s.mu.Lock()
	s.defaults = c
	s.mu.Unlock()
}

func (s *Service) chartDefaults() config.ChartsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// DefaultConfig returns the configuration each chart uses when the caller
// does not override it.
func (s *Service) DefaultConfig(id ChartID) ChartConfig {
	defaults := s.chartDefaults()
	start, _ := utils.ParseOptionalDate(defaults.StartDate)
	cfg := ChartConfig{Interval: series.Weekly, Start: start}
	switch id {
	case YieldSpreadChart, TreasuryRatesChart:
		cfg.FillGaps = true
	case LowestYieldingChart:
		cfg.Interval = parseIntervalOr(defaults.LowestInterval, series.Weekly)
	case HighestYieldingChart:
		cfg.Interval = parseIntervalOr(defaults.HighestInterval, series.MonthEnd)
	}
	return cfg
}

// DefaultPair returns the configured differential.
func (s *Service) DefaultPair() Pair {
	defaults := s.chartDefaults()
	long, err := maturity.ParseLabel(defaults.SpreadLong)
	if err != nil {
		long = maturity.Duration{Count: 10, Unit: maturity.Year}
	}
	short, err := maturity.ParseLabel(defaults.SpreadShort)
	if err != nil {
		short = maturity.Duration{Count: 2, Unit: maturity.Year}
	}
	return Pair{Long: long, Short: short}
}

func parseIntervalOr(s string, fallback series.Interval) series.Interval {
	iv, err := series.ParseInterval(s)
	if err != nil {
		return fallback
	}
	return iv
}

// Build assembles chart id. pair is used by the yield spread only.
func (s *Service) Build(ctx context.Context, id ChartID, cfg ChartConfig, pair Pair) (models.Chart, error) {
	switch id {
	case YieldSpreadChart:
		return s.YieldSpread(ctx, cfg, pair)
	case YieldRangeChart:
		return s.YieldRange(ctx, cfg)
	case LowestYieldingChart:
		return s.LowestYielding(ctx, cfg)
	case HighestYieldingChart:
		return s.HighestYielding(ctx, cfg)
	case TreasuryRatesChart:
		return s.TreasuryRates(ctx, cfg)
	}
	return models.Chart{}, &yields.ValidationError{Field: "chart", Message: fmt.Sprintf("unknown chart %q", id)}
}

// All builds every chart with its defaults. A chart that fails is logged
// and left out; the errors are returned alongside.
func (s *Service) All(ctx context.Context) ([]models.Chart, []error) {
	var (
		out  []models.Chart
		errs []error
	)
	for _, id := range Charts {
		c, err := s.Build(ctx, id, s.DefaultConfig(id), s.DefaultPair())
		if err != nil {
			s.logger.Warn("chart unavailable", "chart", id, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// YieldSpread is the differential between pair's maturities with a zero
// rule and recession starts.
func (s *Service) YieldSpread(ctx context.Context, cfg ChartConfig, pair Pair) (chart models.Chart, err error) {
	ctx, done := s.begin(ctx, YieldSpreadChart, cfg)
	defer func() { done(err) }()

	list, err := s.load(ctx, cfg)
	if err != nil {
		return models.Chart{}, err
	}
	diff, err := yields.DifferentialFromSeries(list, pair.Long, pair.Short)
	if err != nil {
		return models.Chart{}, err
	}

	long, short := pair.Long, pair.Short
	if long.Less(short) {
		long, short = short, long
	}
	return models.Chart{
		ID:     string(YieldSpreadChart),
		Title:  fmt.Sprintf("Yield Differential: %s - %s", long, short),
		YTitle: "Spread",
		Start:  cfg.Start,
		End:    cfg.End,
		Series: []models.NamedSeries{diff.Named()},
		Events: s.events(cfg, events.RecessionStart),
		Rules:  []models.Rule{{Value: 0, Color: "gray"}},
	}, nil
}

// YieldRange is the per-date spread between the highest and lowest yield
// across the curve, with recession starts and ends.
func (s *Service) YieldRange(ctx context.Context, cfg ChartConfig) (chart models.Chart, err error) {
	ctx, done := s.begin(ctx, YieldRangeChart, cfg)
	defer func() { done(err) }()

	t, err := s.table(ctx, cfg, yields.OuterJoin)
	if err != nil {
		return models.Chart{}, err
	}
	spread := yields.HighLowSpread(t)
	if len(spread.Rows) == 0 {
		return models.Chart{}, &yields.DataUnavailableError{What: spread.Name, Reason: "no date has two or more yields"}
	}
	return models.Chart{
		ID:     string(YieldRangeChart),
		Title:  "Yield Differential: Highest Yield vs. Lowest Yield Spread",
		YTitle: "High-Low Spread",
		Start:  cfg.Start,
		End:    cfg.End,
		Series: []models.NamedSeries{spread.Named()},
		Events: s.events(cfg, events.RecessionStart, events.RecessionEnd),
	}, nil
}

// LowestYielding plots the year fraction of the lowest yielding maturity
// against the forward-filled Fed Funds rate, on the dates both have.
func (s *Service) LowestYielding(ctx context.Context, cfg ChartConfig) (chart models.Chart, err error) {
	ctx, done := s.begin(ctx, LowestYieldingChart, cfg)
	defer func() { done(err) }()

	set, err := s.loadSet(ctx)
	if err != nil {
		return models.Chart{}, err
	}
	list := s.prepare(set.Only(cfg.Maturities).Series, cfg)
	t, err := yields.Combine(list, yields.OuterJoin)
	if err != nil {
		return models.Chart{}, err
	}
	lowest, err := yields.ExtremumDurations(t, yields.Lowest)
	if err != nil {
		return models.Chart{}, err
	}
	lowestNamed := lowest.Named()
	lowestNamed.Name = "Lowest Yielding Duration"
	lowestNamed.Color = "#1f77b4"

	out := models.Chart{
		ID:     string(LowestYieldingChart),
		Title:  "Lowest Yielding Maturity (" + shortLabels(yields.Durations(list)) + ")",
		YTitle: "Maturity Duration/Yield %",
		Start:  cfg.Start,
		End:    cfg.End,
		Events: s.events(cfg, events.RecessionStart, events.MarketPeak, events.MarketTrough),
	}

	ff, ok := set.Get(maturity.FedFunds)
	if !ok {
		s.logger.Warn("fed funds series not loaded, plotting lowest duration alone")
		out.Series = []models.NamedSeries{lowestNamed}
		return out, nil
	}
	ffCfg := cfg
	ffCfg.FillGaps = true
	ffNamed := s.prepare([]series.MaturitySeries{ff}, ffCfg)[0].Named("Fed Funds Rate")
	ffNamed.Color = "#2ca02c"

	lowestNamed, ffNamed = innerJoin(lowestNamed, ffNamed)
	if len(lowestNamed.Points) == 0 {
		return models.Chart{}, &yields.DataUnavailableError{What: out.Title, Reason: "lowest duration and fed funds share no dates"}
	}
	out.Series = []models.NamedSeries{lowestNamed, ffNamed}
	return out, nil
}

// HighestYielding plots the year fraction of the highest yielding maturity.
func (s *Service) HighestYielding(ctx context.Context, cfg ChartConfig) (chart models.Chart, err error) {
	ctx, done := s.begin(ctx, HighestYieldingChart, cfg)
	defer func() { done(err) }()

	t, err := s.table(ctx, cfg, yields.OuterJoin)
	if err != nil {
		return models.Chart{}, err
	}
	highest, err := yields.ExtremumDurations(t, yields.Highest)
	if err != nil {
		return models.Chart{}, err
	}
	named := highest.Named()
	named.Name = "Highest Yielding Duration"
	return models.Chart{
		ID:     string(HighestYieldingChart),
		Title:  "Highest Yielding Maturity",
		YTitle: "Maturity Duration",
		Start:  cfg.Start,
		End:    cfg.End,
		Series: []models.NamedSeries{named},
		Events: s.events(cfg, events.RecessionStart, events.RecessionEnd),
	}, nil
}

// TreasuryRates plots every maturity's yield.
func (s *Service) TreasuryRates(ctx context.Context, cfg ChartConfig) (chart models.Chart, err error) {
	ctx, done := s.begin(ctx, TreasuryRatesChart, cfg)
	defer func() { done(err) }()

	list, err := s.load(ctx, cfg)
	if err != nil {
		return models.Chart{}, err
	}
	out := models.Chart{
		ID:     string(TreasuryRatesChart),
		Title:  "Treasury rates",
		YTitle: "Yield %",
		Start:  cfg.Start,
		End:    cfg.End,
	}
	for _, ms := range list {
		name := ms.Label.String()
		if ms.Label.IsFedFunds() {
			name = "Fed Funds Rate"
		}
		if n := ms.Named(name); len(n.Points) > 0 {
			out.Series = append(out.Series, n)
		}
	}
	if len(out.Series) == 0 {
		return models.Chart{}, &yields.DataUnavailableError{What: out.Title, Reason: "no observations in range"}
	}
	return out, nil
}

// Table loads, resamples and outer-joins the series selected by cfg.
func (s *Service) Table(ctx context.Context, cfg ChartConfig) (*yields.WideYieldTable, error) {
	return s.table(ctx, cfg, yields.OuterJoin)
}

// Series returns the snapshots as stored, limited to ds when given.
func (s *Service) Series(ctx context.Context, ds ...maturity.Duration) ([]series.MaturitySeries, error) {
	set, err := s.loadSet(ctx)
	if err != nil {
		return nil, err
	}
	return set.Only(ds).Series, nil
}

func (s *Service) table(ctx context.Context, cfg ChartConfig, join yields.Join) (*yields.WideYieldTable, error) {
	list, err := s.load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return yields.Combine(list, join)
}

func (s *Service) load(ctx context.Context, cfg ChartConfig) ([]series.MaturitySeries, error) {
	set, err := s.loadSet(ctx)
	if err != nil {
		return nil, err
	}
	set = set.Only(cfg.Maturities)
	if len(set.Series) == 0 {
		return nil, &yields.DataUnavailableError{What: "maturities", Reason: "none of the requested series are loaded"}
	}
	return s.prepare(set.Series, cfg), nil
}

// loadSet reads the snapshot directory, counting loads and skips.
func (s *Service) loadSet(ctx context.Context) (series.Set, error) {
	_, span := s.tracer.Start(ctx, "series.load", trace.WithAttributes(attribute.String("dir", s.dir)))
	defer span.End()

	set, err := series.LoadDir(s.dir, s.ids, s.logger)
	if err != nil {
		telemetry.RecordError(span, err)
		return series.Set{}, &yields.DataUnavailableError{What: "yield data", Reason: err.Error()}
	}
	for _, ms := range set.Series {
		s.metrics.SeriesLoadedFor(ms.Label.String())
	}
	for _, e := range set.Skipped {
		var pe *maturity.ParseError
		if errors.As(e, &pe) {
			s.metrics.ParseError()
		}
	}
	span.SetAttributes(attribute.Int("loaded", len(set.Series)), attribute.Int("skipped", len(set.Skipped)))
	if len(set.Series) == 0 {
		return set, &yields.DataUnavailableError{What: "yield data", Reason: "no series files in " + s.dir}
	}
	return set, nil
}

// prepare resamples each series then trims it to cfg's range, so fills can
// draw on values before Start.
func (s *Service) prepare(list []series.MaturitySeries, cfg ChartConfig) []series.MaturitySeries {
	out := make([]series.MaturitySeries, len(list))
	for i, ms := range list {
		out[i] = series.Resample(ms, cfg.Interval, cfg.FillGaps).Between(cfg.Start, cfg.End)
	}
	return out
}

func (s *Service) events(cfg ChartConfig, cats ...events.Category) []models.EventMarker {
	return events.Markers(events.Between(events.For(cats...), cfg.Start, cfg.End))
}

// begin opens the chart span and returns a func that ends it, recording the
// outcome and duration.
func (s *Service) begin(ctx context.Context, id ChartID, cfg ChartConfig) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chart."+string(id), trace.WithAttributes(
		attribute.String("interval", cfg.Interval.String()),
		attribute.Bool("fill_gaps", cfg.FillGaps),
		attribute.Int("maturities", len(cfg.Maturities)),
	))
	return ctx, func(err error) {
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.ObservePipeline(string(id), start)
		if err != nil {
			s.logger.Debug("chart build failed", "chart", id, "error", err)
		}
	}
}

// innerJoin keeps the points of a and b whose dates appear in both.
func innerJoin(a, b models.NamedSeries) (models.NamedSeries, models.NamedSeries) {
	inB := make(map[time.Time]bool, len(b.Points))
	for _, p := range b.Points {
		inB[p.Date] = true
	}
	inA := make(map[time.Time]bool, len(a.Points))
	keepA := a.Points[:0:0]
	for _, p := range a.Points {
		if inB[p.Date] {
			keepA = append(keepA, p)
			inA[p.Date] = true
		}
	}
	keepB := b.Points[:0:0]
	for _, p := range b.Points {
		if inA[p.Date] {
			keepB = append(keepB, p)
		}
	}
	a.Points, b.Points = keepA, keepB
	return a, b
}

// shortLabels renders "FF, 1mo, 3mo, 1yr".
func shortLabels(ds []maturity.Duration) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		switch {
		case d.IsFedFunds():
			parts[i] = "FF"
		case d.Unit == maturity.Month:
			parts[i] = strconv.Itoa(d.Count) + "mo"
		default:
			parts[i] = strconv.Itoa(d.Count) + "yr"
		}
	}
	return strings.Join(parts, ", ")
}
