package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/logging"
)

func TestSetupNone(t *testing.T) {
	p, err := Setup(config.TelemetryConfig{Tracing: "none"}, "test", logging.Discard())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TelemetryConfig{Tracing: "stdout", SampleRatio: 1, ServiceName: "yieldcharts-test"}

	p, err := SetupWithWriter(cfg, "v0.0.1", &buf, logging.Discard())
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer.Start(context.Background(), "chart.yield_range")
	assert.True(t, span.SpanContext().IsValid())
	RecordError(span, errors.New("boom"))
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "chart.yield_range")
	assert.Contains(t, buf.String(), "yieldcharts-test")
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(config.TelemetryConfig{Tracing: "jaeger"}, "test", nil)
	assert.Error(t, err)
}
