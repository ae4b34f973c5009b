// Package api provides the HTTP server for yieldcharts.
//
// It serves the dashboard and compare pages, JSON and SVG chart endpoints,
// the workbook export, refresh and configuration endpoints, Prometheus
// metrics and a WebSocket that announces refresh results.
package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/internal/headlines"
	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/refresh"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/web"
)

// Deps are the collaborators the server routes to. Config and Dashboard are
// required.
type Deps struct {
	Config    *config.Config
	Dashboard *dashboard.Service
	Refresher *refresh.Refresher
	Headlines *headlines.Source
	Metrics   *metrics.Metrics
	Hub       *WSHub
	Logger    *slog.Logger
	Version   string
}

// Server is the HTTP server.
type Server struct {
	router    chi.Router
	cfgMu     sync.RWMutex
	cfg       *config.Config
	dash      *dashboard.Service
	refresher *refresh.Refresher
	news      *headlines.Source
	metrics   *metrics.Metrics
	wsHub     *WSHub
	logger    *slog.Logger
	validate  *validator.Validate
	pages     *template.Template
	version   string
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Dashboard == nil {
		return nil, errors.New("api: config and dashboard are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Hub == nil {
		d.Hub = NewWSHub(d.Logger)
	}
	if d.Version == "" {
		d.Version = "dev"
	}

	srv := &Server{
		cfg:       d.Config,
		dash:      d.Dashboard,
		refresher: d.Refresher,
		news:      d.Headlines,
		metrics:   d.Metrics,
		wsHub:     d.Hub,
		logger:    d.Logger,
		validate:  config.NewValidator(),
		pages:     web.Templates(),
		version:   d.Version,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Get("/", s.handleDashboardPage)
		r.Get("/compare", s.handleComparePage)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// the socket must outlive the request timeout
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(120 * time.Second))
			r.Get("/health", s.handleHealth)
			r.Get("/status", s.handleStatus)

			r.Get("/series", s.handleSeries)
			r.Get("/charts", s.handleListCharts)
			r.Get("/charts/{id}", s.handleChart)
			r.Get("/curve", s.handleCurve)
			r.Get("/curve.svg", s.handleCurveSVG)
			r.Get("/events", s.handleEvents)
			r.Get("/headlines", s.handleHeadlines)
			r.Get("/export.xlsx", s.handleExport)

			r.Get("/config", s.handleGetConfig)
			r.Put("/config", s.handleUpdateConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})

		// a full download can take longer than a page render
		r.With(middleware.Timeout(5*time.Minute)).Post("/refresh", s.handleRefresh)
	})

	return r
}

// requestLogger logs each request and counts it by route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.Request(route, status)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// currentConfig returns a snapshot of the running configuration.
func (s *Server) currentConfig() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return *s.cfg
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeData(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, APIResponse{Success: false, Error: msg})
}

// writeErr maps domain errors onto status codes: bad input is 400, a valid
// request with nothing to show is 404, anything else is 500.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func errorStatus(err error) int {
	var (
		ve  *yields.ValidationError
		ime *yields.InvalidMaturityError
		pe  *maturity.ParseError
		due *yields.DataUnavailableError
		qe  *queryError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ime), errors.As(err, &pe), errors.As(err, &qe):
		return http.StatusBadRequest
	case errors.As(err, &due):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// queryError is a malformed query string.
type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }

// ============================================================
// Query parsing
// ============================================================

// chartQuery is the query string of the chart endpoints. Every field is
// optional and overrides the chart's default.
type chartQuery struct {
	Interval   string `json:"interval"   validate:"omitempty,interval"`
	Fill       string `json:"fill"       validate:"omitempty,oneof=true false 1 0"`
	Start      string `json:"start"      validate:"omitempty,datetime=2006-01-02"`
	End        string `json:"end"        validate:"omitempty,datetime=2006-01-02"`
	Maturities string `json:"maturities"`
	Long       string `json:"long"       validate:"omitempty,maturity"`
	Short      string `json:"short"      validate:"omitempty,maturity"`
	Width      int    `json:"width"      validate:"omitempty,gte=200,lte=4000"`
	Height     int    `json:"height"     validate:"omitempty,gte=100,lte=3000"`
}

func (s *Server) parseChartQuery(r *http.Request) (chartQuery, error) {
	q := r.URL.Query()
	cq := chartQuery{
		Interval:   q.Get("interval"),
		Fill:       strings.ToLower(q.Get("fill")),
		Start:      q.Get("start"),
		End:        q.Get("end"),
		Maturities: q.Get("maturities"),
		Long:       q.Get("long"),
		Short:      q.Get("short"),
	}
	for name, dst := range map[string]*int{"width": &cq.Width, "height": &cq.Height} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cq, &queryError{msg: name + " must be an integer"}
			}
			*dst = n
		}
	}
	if err := config.ValidateStruct(s.validate, cq); err != nil {
		return cq, &queryError{msg: strings.TrimPrefix(err.Error(), "invalid configuration: ")}
	}
	return cq, nil
}

// apply overlays the query onto the chart's defaults.
func (cq chartQuery) apply(cfg dashboard.ChartConfig, pair dashboard.Pair) (dashboard.ChartConfig, dashboard.Pair, error) {
	if cq.Interval != "" {
		iv, err := series.ParseInterval(cq.Interval)
		if err != nil {
			return cfg, pair, &queryError{msg: err.Error()}
		}
		cfg.Interval = iv
	}
	if cq.Fill != "" {
		cfg.FillGaps = cq.Fill == "true" || cq.Fill == "1"
	}
	if cq.Start != "" {
		cfg.Start, _ = time.Parse(series.DateLayout, cq.Start)
	}
	if cq.End != "" {
		cfg.End, _ = time.Parse(series.DateLayout, cq.End)
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return cfg, pair, &queryError{msg: "end is before start"}
	}
	if cq.Maturities != "" {
		cfg.Maturities = nil
		for _, part := range strings.Split(cq.Maturities, ",") {
			d, err := parseMaturity(part)
			if err != nil {
				return cfg, pair, err
			}
			cfg.Maturities = append(cfg.Maturities, d)
		}
	}
	if cq.Long != "" {
		pair.Long, _ = maturity.ParseLabel(cq.Long)
	}
	if cq.Short != "" {
		pair.Short, _ = maturity.ParseLabel(cq.Short)
	}
	return cfg, pair, nil
}

// parseMaturity accepts a label ("10-year") or a FRED identifier ("DGS10").
func parseMaturity(s string) (maturity.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := maturity.ParseLabel(s); err == nil {
		return d, nil
	}
	return maturity.Parse(s)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(series.DateLayout, v)
	if err != nil {
		return time.Time{}, &queryError{msg: fmt.Sprintf("%s must be YYYY-MM-DD", name)}
	}
	return t, nil
}
