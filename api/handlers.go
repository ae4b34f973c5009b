package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/yieldcharts/internal/chart"
	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/internal/events"
	"github.com/seenimoa/yieldcharts/internal/export"
	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/refresh"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/models"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// StatusInfo is the body of GET /api/v1/status.
type StatusInfo struct {
	Version    string    `json:"version"`
	Latest     time.Time `json:"latest"`
	AgeDays    int       `json:"age_days"`
	Stale      bool      `json:"stale"`
	MaxAgeDays int       `json:"max_age_days"`
	HasFREDKey bool      `json:"has_fred_key"`
	DataDir    string    `json:"data_dir"`
	Series     []string  `json:"series"`
	Clients    int       `json:"ws_clients"`
}

// ChartInfo describes one chart in GET /api/v1/charts.
type ChartInfo struct {
	ID       string `json:"id"`
	Interval string `json:"interval"`
	Fill     bool   `json:"fill"`
	Start    string `json:"start,omitempty"`
}

// SeriesInfo describes one loaded maturity in GET /api/v1/series.
type SeriesInfo struct {
	Label        string    `json:"label"`
	SeriesID     string    `json:"series_id"`
	Years        float64   `json:"years"`
	Observations int       `json:"observations"`
	Valid        int       `json:"valid"`
	First        time.Time `json:"first"`
	Last         time.Time `json:"last"`
	LastValue    float64   `json:"last_value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time_et": utils.NowET().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	info := StatusInfo{
		Version:    s.version,
		AgeDays:    -1,
		MaxAgeDays: cfg.Data.MaxAgeDays,
		HasFREDKey: cfg.HasFREDKey(),
		DataDir:    cfg.Data.Dir,
		Series:     cfg.Data.Series,
		Clients:    s.wsHub.ClientCount(),
	}
	if s.refresher != nil {
		info.AgeDays, info.Latest = s.refresher.Age()
	} else if latest, err := s.dash.LatestDate(r.Context()); err == nil {
		info.Latest = latest
		info.AgeDays = utils.DaysBetween(latest, utils.Today())
	}
	info.Stale = info.AgeDays < 0 || info.AgeDays >= cfg.Data.MaxAgeDays
	if info.AgeDays >= 0 {
		s.metrics.SetDataAge(info.AgeDays)
	}
	writeData(w, r, info)
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	out := make([]ChartInfo, 0, len(dashboard.Charts))
	for _, id := range dashboard.Charts {
		c := s.dash.DefaultConfig(id)
		out = append(out, ChartInfo{
			ID:       string(id),
			Interval: c.Interval.String(),
			Fill:     c.FillGaps,
			Start:    utils.FormatDate(c.Start),
		})
	}
	writeData(w, r, out)
}

// handleSeries lists the loaded snapshots with their observation counts and
// date spans.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	list, err := s.dash.Series(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	out := make([]SeriesInfo, 0, len(list))
	for _, ms := range list {
		info := SeriesInfo{
			Label:        ms.Label.String(),
			SeriesID:     maturity.SeriesID(ms.Label),
			Years:        ms.Label.Years(),
			Observations: ms.Len(),
			Valid:        ms.Valid(),
		}
		if ms.Len() > 0 {
			info.First = ms.Observations[0].Date
		}
		if last, ok := ms.Last(); ok {
			info.Last, info.LastValue = last.Date, last.Value
		}
		out = append(out, info)
	}
	writeData(w, r, out)
}

// handleChart serves /api/v1/charts/{id} as JSON, or as SVG when the id
// carries a .svg suffix.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	asSVG := strings.HasSuffix(raw, ".svg")
	id, err := dashboard.ParseChartID(strings.TrimSuffix(raw, ".svg"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	q, err := s.parseChartQuery(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cfg, pair, err := q.apply(s.dash.DefaultConfig(id), s.dash.DefaultPair())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	c, err := s.dash.Build(r.Context(), id, cfg, pair)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if asSVG {
		writeSVG(w, chart.Render(c, s.chartOptions(q.Width, q.Height)))
		return
	}
	writeData(w, r, c)
}

// curveDates reads date1 and date2, defaulting to a week ago and the latest
// data date.
func (s *Server) curveDates(r *http.Request) (d1, d2 time.Time, err error) {
	if d1, err = parseDateParam(r, "date1"); err != nil {
		return
	}
	if d2, err = parseDateParam(r, "date2"); err != nil {
		return
	}
	if d1.IsZero() {
		d1 = utils.Today().AddDate(0, 0, -7)
	}
	if d2.IsZero() {
		if d2, err = s.dash.LatestDate(r.Context()); err != nil {
			return
		}
	}
	return d1, d2, nil
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	d1, d2, err := s.curveDates(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cmp, err := s.dash.CompareCurves(r.Context(), d1, d2)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeData(w, r, cmp)
}

func (s *Server) handleCurveSVG(w http.ResponseWriter, r *http.Request) {
	d1, d2, err := s.curveDates(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cmp, err := s.dash.CompareCurves(r.Context(), d1, d2)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))
	writeSVG(w, renderComparison(cmp, s.chartOptions(width, height)))
}

func renderComparison(cmp dashboard.Comparison, opts chart.Options) string {
	return chart.RenderCurve("Yield Curve Comparison", cmp.First, cmp.Second, cmp.Durations, cmp.YMin, cmp.YMax, opts)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var cats []events.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			c, err := events.ParseCategory(part)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			cats = append(cats, c)
		}
	}
	start, err := parseDateParam(r, "start")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeData(w, r, events.Markers(events.Between(events.For(cats...), start, end)))
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	limit := s.currentConfig().Headlines.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	if s.news == nil || !s.news.Enabled() {
		writeData(w, r, []models.Headline{})
		return
	}
	list, err := s.news.Latest(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeData(w, r, list)
}

// handleRefresh refreshes stale snapshots, or every snapshot with
// ?force=true, which also drops the cached headlines. A failed download
// still answers with the run result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "refresh is not configured")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	var res refresh.Result
	if force {
		res = s.refresher.Force(r.Context())
		if s.news != nil {
			s.news.Invalidate()
		}
	} else {
		res = s.refresher.RefreshIfStale(r.Context(), s.currentConfig().Data.MaxAgeDays)
	}

	if res.Status == refresh.StatusStaleRefreshFailed {
		writeJSON(w, r, http.StatusBadGateway, APIResponse{Success: false, Data: res, Error: res.Error})
		return
	}
	writeData(w, r, res)
}

// handleExport writes the combined yields and their derived series as an
// xlsx workbook. It accepts the chart query parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseChartQuery(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cfg, pair, err := q.apply(s.dash.DefaultConfig(dashboard.YieldRangeChart), s.dash.DefaultPair())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	wb, err := s.workbook(r, cfg, pair)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, wb); err != nil {
		s.writeErr(w, r, err)
		return
	}
	name := fmt.Sprintf("yields-%s.xlsx", utils.FormatDate(utils.Today()))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) workbook(r *http.Request, cfg dashboard.ChartConfig, pair dashboard.Pair) (export.Workbook, error) {
	table, err := s.dash.Table(r.Context(), cfg)
	if err != nil {
		return export.Workbook{}, err
	}
	wb := export.Workbook{Table: table, Spread: yields.HighLowSpread(table)}
	wb.High, wb.Low = yields.RowExtremes(table)

	var due *yields.DataUnavailableError
	if wb.Lowest, err = yields.ExtremumDurations(table, yields.Lowest); err != nil && !errors.As(err, &due) {
		return wb, err
	}
	if wb.Highest, err = yields.ExtremumDurations(table, yields.Highest); err != nil && !errors.As(err, &due) {
		return wb, err
	}
	// the differential sheet is left out when the pair is not loaded
	if table.Has(pair.Long) && table.Has(pair.Short) {
		if wb.Differential, err = yields.Differential(table, pair.Long, pair.Short); err != nil && !errors.As(err, &due) {
			return wb, err
		}
	}

	start, end := cfg.Start, cfg.End
	if dates := table.Dates(); len(dates) > 0 {
		start, end = dates[0], dates[len(dates)-1]
	}
	wb.Events = events.Between(events.For(), start, end)
	return wb, nil
}

func (s *Server) chartOptions(width, height int) chart.Options {
	cfg := s.currentConfig()
	if width == 0 {
		width = cfg.Charts.Width
	}
	if height == 0 {
		height = cfg.Charts.Height
	}
	return chart.WithSize(width, height)
}

func writeSVG(w http.ResponseWriter, svg string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(svg))
}
