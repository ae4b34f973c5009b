// Package fred downloads treasury constant-maturity observations from the
// FRED (Federal Reserve Economic Data) API.
//
// Requires a free API key from https://fred.stlouisfed.org/docs/api/api_key.html
// Rate limit: 120 requests/minute.
// Docs: https://fred.stlouisfed.org/docs/api/fred/
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/infra"
	"github.com/seenimoa/yieldcharts/internal/series"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// ErrNoCredentials is returned when no API key is configured.
var ErrNoCredentials = errors.New("fred: no API key configured")

// Client fetches observations. It is safe for concurrent use; all calls
// share one rate limiter.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *infra.RateLimiter
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a client for cfg.
func New(cfg config.FREDConfig, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: infra.NewRateLimiter(cfg.RequestsPerMinute),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasCredentials reports whether an API key is set.
func (c *Client) HasCredentials() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// Observations returns the observations of seriesID between start and end
// inclusive. Zero times leave that side open. FRED's "." placeholder
// becomes a missing observation.
func (c *Client) Observations(ctx context.Context, seriesID string, start, end time.Time) ([]series.Observation, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	if !start.IsZero() {
		q.Set("observation_start", start.Format(series.DateLayout))
	}
	if !end.IsZero() {
		q.Set("observation_end", end.Format(series.DateLayout))
	}

	var resp observationsResponse
	if err := c.getJSON(ctx, "series/observations", q, &resp); err != nil {
		return nil, fmt.Errorf("fred %s: %w", seriesID, err)
	}

	out := make([]series.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		obs, err := o.toObservation()
		if err != nil {
			return nil, fmt.Errorf("fred %s: %w", seriesID, err)
		}
		out = append(out, obs)
	}
	c.logger.Debug("fred observations fetched", "series", seriesID, "count", len(out))
	return out, nil
}

// Ping checks connectivity and the API key.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("series_id", "DGS10")
	var resp struct {
		Seriess []struct {
			ID string `json:"id"`
		} `json:"seriess"`
	}
	if err := c.getJSON(ctx, "series", q, &resp); err != nil {
		return fmt.Errorf("fred ping: %w", err)
	}
	return nil
}

// getJSON performs a rate-limited GET against endpoint and decodes JSON.
func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, dest any) error {
	if !c.HasCredentials() {
		return ErrNoCredentials
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	full := c.baseURL + "/" + endpoint + "?" + q.Encode()

	body, _, err := infra.DoGetWith(ctx, c.http, full, jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read FRED response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse FRED JSON: %w", err)
	}
	return nil
}

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

type observationsResponse struct {
	ObservationStart string        `json:"observation_start"`
	ObservationEnd   string        `json:"observation_end"`
	Units            string        `json:"units"`
	Count            int           `json:"count"`
	Observations     []observation `json:"observations"`
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func (o observation) toObservation() (series.Observation, error) {
	d, err := time.Parse(series.DateLayout, o.Date)
	if err != nil {
		return series.Observation{}, fmt.Errorf("bad observation date %q", o.Date)
	}
	v := strings.TrimSpace(o.Value)
	if v == "" || v == "." {
		return series.Observation{Date: d, Missing: true}, nil
	}
	dec, err := decimal.NewFromString(v)
	if err != nil {
		return series.Observation{}, fmt.Errorf("bad value %q on %s", o.Value, o.Date)
	}
	return series.Observation{Date: d, Value: dec.InexactFloat64()}, nil
}
