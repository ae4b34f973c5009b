package api

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/seenimoa/yieldcharts/internal/chart"
	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/pkg/models"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// Intro is the paragraph set shown above the dashboard charts.
var Intro = []string{
	"The 10-year vs. 2-year U.S Treasury spread is the go-to metric for looking at the state of the yield curve and has had one of the best track records in predicting recessions since the 1950's.",
	"The following charts aim to enhance the insights that the 10yr-2yr provides by visualizing trends of the entire yield curve.",
}

type renderedChart struct {
	ID  string
	SVG template.HTML
}

type dashboardPage struct {
	Title     string
	Version   string
	Intro     []string
	Latest    time.Time
	Headlines []models.Headline
	Charts    []renderedChart
	Errors    []string
}

type comparePage struct {
	Title      string
	Version    string
	Latest     time.Time
	MinDate    time.Time
	Date1      time.Time
	Date2      time.Time
	Difference string
	Error      string
	SVG        template.HTML
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.currentConfig()
	page := dashboardPage{Title: "Yield Curve Charts", Version: s.version, Intro: Intro}
	page.Latest, _ = s.dash.LatestDate(ctx)

	charts, errs := s.dash.All(ctx)
	opts := chart.WithSize(cfg.Charts.Width, cfg.Charts.Height)
	for _, c := range charts {
		// chart.Render escapes every caller-supplied string
		page.Charts = append(page.Charts, renderedChart{ID: c.ID, SVG: template.HTML(chart.Render(c, opts))}) //nolint:gosec
	}
	for _, err := range errs {
		page.Errors = append(page.Errors, err.Error())
	}
	if s.news != nil {
		page.Headlines = s.news.LatestOrEmpty(ctx, cfg.Headlines.Limit)
	}
	s.renderPage(w, "dashboard.html", page)
}

func (s *Server) handleComparePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.currentConfig()
	page := comparePage{Title: "Compare Yield Curves", Version: s.version, MinDate: dashboard.CompareMinDate}
	page.Latest, _ = s.dash.LatestDate(ctx)

	d1, d2, err := s.curveDates(r)
	page.Date1, page.Date2 = d1, d2
	if err == nil {
		var cmp dashboard.Comparison
		cmp, err = s.dash.CompareCurves(ctx, d1, d2)
		if err == nil {
			page.Difference = cmp.DifferenceText
			opts := chart.WithSize(cfg.Charts.Width, cfg.Charts.Height+100)
			page.SVG = template.HTML(renderComparison(cmp, opts)) //nolint:gosec
		}
	}
	if err != nil {
		page.Error = err.Error()
		if d1.IsZero() {
			page.Date1 = utils.Today().AddDate(0, 0, -7)
		}
	}
	s.renderPage(w, "compare.html", page)
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
