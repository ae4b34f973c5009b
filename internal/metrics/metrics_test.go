package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SeriesLoadedFor("10-year")
	m.SeriesLoadedFor("10-year")
	m.SeriesLoadedFor("2-year")
	m.ParseError()
	m.Refresh("fresh")
	m.SetDataAge(3)
	m.Request("/api/v1/status", http.StatusOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SeriesLoaded.WithLabelValues("10-year")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesLoaded.WithLabelValues("2-year")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesParseErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("fresh")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DataAgeDays))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/status", "200")))
}

func TestPipelineHistogram(t *testing.T) {
	m := New()
	m.ObservePipeline("yield_range", time.Now().Add(-20*time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration, "yieldcharts_pipeline_duration_seconds"))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Refresh("refreshed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `yieldcharts_refresh_total{status="refreshed"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SeriesLoadedFor("1-year")
		m.ParseError()
		m.ObservePipeline("x", time.Now())
		m.Refresh("fresh")
		m.SetDataAge(1)
		m.Request("/", 200)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
