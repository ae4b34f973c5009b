// Package refresh keeps the CSV snapshots current. It compares the newest
// observation of a reference series against today and, when the data is
// too old, downloads every configured series from FRED and rewrites the
// snapshots. Refresh failures never stop the dashboard from serving the
// data it already has.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/fred"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/internal/telemetry"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// Status is the outcome of a refresh run.
type Status string

const (
	StatusFresh                Status = "fresh"
	StatusRefreshed            Status = "refreshed"
	StatusSkippedNoCredentials Status = "skipped_no_credentials"
	StatusStaleRefreshFailed   Status = "stale_refresh_failed"
)

// Result describes one run.
type Result struct {
	RunID     string        `json:"run_id"`
	Status    Status        `json:"status"`
	Forced    bool          `json:"forced"`
	Latest    time.Time     `json:"latest"`   // newest reference date after the run
	AgeDays   int           `json:"age_days"` // -1 when no snapshot exists
	Updated   []string      `json:"updated,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Downloader is the subset of *fred.Client the refresher uses.
type Downloader interface {
	HasCredentials() bool
	Observations(ctx context.Context, seriesID string, start, end time.Time) ([]series.Observation, error)
}

// Refresher owns the snapshot directory. Runs are serialised.
type Refresher struct {
	dir         string
	ids         []string
	reference   string
	concurrency int
	client      Downloader

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	notify  func(Result)
	today   func() time.Time

	mu sync.Mutex
}

// Option customises a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Refresher) { r.logger = l } }

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Refresher) { r.metrics = m } }

// WithTracer opens a span per run.
func WithTracer(t trace.Tracer) Option { return func(r *Refresher) { r.tracer = t } }

// WithNotify calls fn after every run, e.g. to push the result to open
// dashboards.
func WithNotify(fn func(Result)) Option { return func(r *Refresher) { r.notify = fn } }

// WithClock replaces utils.Today.
func WithClock(today func() time.Time) Option { return func(r *Refresher) { r.today = today } }

// New creates a refresher for the data section of cfg.
func New(cfg config.DataConfig, concurrency int, client Downloader, opts ...Option) *Refresher {
	if concurrency < 1 {
		concurrency = 1
	}
	r := &Refresher{
		dir:         cfg.Dir,
		ids:         cfg.Series,
		reference:   cfg.ReferenceSeries,
		concurrency: concurrency,
		client:      client,
		logger:      slog.Default(),
		tracer:      telemetry.Noop(),
		today:       utils.Today,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LatestObservation returns the date of the reference snapshot's last row.
func (r *Refresher) LatestObservation() (time.Time, error) {
	s, err := series.LoadFile(r.path(r.reference))
	if err != nil {
		return time.Time{}, err
	}
	if len(s.Observations) == 0 {
		return time.Time{}, fmt.Errorf("%s: no observations", r.reference)
	}
	return s.Observations[len(s.Observations)-1].Date, nil
}

// Age returns the days between the latest observation and today, or -1
// when there is no readable snapshot.
func (r *Refresher) Age() (int, time.Time) {
	latest, err := r.LatestObservation()
	if err != nil {
		return -1, time.Time{}
	}
	return utils.DaysBetween(latest, r.today()), latest
}

// RefreshIfStale downloads fresh data when the reference snapshot is
// missing or at least maxAgeDays old.
func (r *Refresher) RefreshIfStale(ctx context.Context, maxAgeDays int) Result {
	return r.run(ctx, false, maxAgeDays)
}

// Force downloads regardless of age.
func (r *Refresher) Force(ctx context.Context) Result {
	return r.run(ctx, true, 0)
}

func (r *Refresher) run(ctx context.Context, force bool, maxAgeDays int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{RunID: uuid.NewString(), Forced: force, StartedAt: time.Now()}
	ctx, span := r.tracer.Start(ctx, "refresh",
		trace.WithAttributes(
			attribute.String("run_id", res.RunID),
			attribute.Bool("forced", force),
		))
	defer span.End()

	log := r.logger.With("run_id", res.RunID)

	age, latest := r.Age()
	res.AgeDays, res.Latest = age, latest

	switch {
	case force:
		log.Info("forced data refresh")
	case age < 0:
		log.Info("no snapshot found, downloading", "series", r.reference)
	case age >= maxAgeDays:
		log.Info("yield data is stale, downloading", "age_days", age, "max_age_days", maxAgeDays)
	default:
		log.Info("data is fresh", "age_days", age)
		return r.finish(span, res, StatusFresh, nil)
	}

	if r.client == nil || !r.client.HasCredentials() {
		log.Warn("no FRED API key, keeping existing data")
		return r.finish(span, res, StatusSkippedNoCredentials, nil)
	}

	updated, err := r.download(ctx)
	if err != nil {
		log.Warn("data refresh failed, serving existing data", "error", err)
		telemetry.RecordError(span, err)
		return r.finish(span, res, StatusStaleRefreshFailed, err)
	}
	res.Updated = updated
	res.AgeDays, res.Latest = r.Age()
	log.Info("data refreshed", "series", len(updated), "latest", utils.FormatDate(res.Latest))
	return r.finish(span, res, StatusRefreshed, nil)
}

func (r *Refresher) finish(span trace.Span, res Result, status Status, err error) Result {
	res.Status = status
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Error = err.Error()
	}
	span.SetAttributes(attribute.String("status", string(status)))

	r.metrics.Refresh(string(status))
	if res.AgeDays >= 0 {
		r.metrics.SetDataAge(res.AgeDays)
	}
	if r.notify != nil {
		r.notify(res)
	}
	return res
}

// download fetches every series concurrently and only writes snapshots
// once all of them arrived, so a partial failure leaves the directory as
// it was.
func (r *Refresher) download(ctx context.Context) ([]string, error) {
	fetched := make([][]series.Observation, len(r.ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range r.ids {
		g.Go(func() error {
			obs, err := r.client.Observations(gctx, id, time.Time{}, time.Time{})
			if err != nil {
				return err
			}
			if len(obs) == 0 {
				return fmt.Errorf("fred %s: empty response", id)
			}
			fetched[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	updated := make([]string, 0, len(r.ids))
	for i, id := range r.ids {
		if err := series.WriteFile(r.path(id), id, fetched[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		updated = append(updated, id)
	}
	return updated, errors.Join(errs...)
}

func (r *Refresher) path(id string) string {
	return filepath.Join(r.dir, id+".csv")
}

var _ Downloader = (*fred.Client)(nil)
