package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/models"
)

func TestPrintChart(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	ch := models.Chart{
		Title: "Lowest",
		Series: []models.NamedSeries{
			{Name: "Lowest Yielding Duration", Points: []models.Point{{Date: d(14), Value: 10}, {Date: d(7), Value: 10}}},
			{Name: "Fed Funds Rate", Points: []models.Point{{Date: d(7), Value: 5.33}}},
		},
	}
	var buf bytes.Buffer
	if err := printChart(&buf, ch); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[2], "2024-01-07") || !strings.Contains(lines[2], "5.330") {
		t.Errorf("rows must be date ordered: %q", lines[2])
	}
	if strings.Contains(lines[3], "5.330") {
		t.Errorf("missing value rendered: %q", lines[3])
	}
}

func TestPrintComparison(t *testing.T) {
	cmp := dashboard.Comparison{
		CurveComparison: yields.CurveComparison{
			First:     models.DatedCurve{Date: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), Points: []models.CurvePoint{{Duration: "2-year", Yield: 4.4}}},
			Second:    models.DatedCurve{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Points: []models.CurvePoint{{Duration: "2-year", Yield: 4.1}}},
			Durations: []string{"2-year"},
		},
		DifferenceText: "Date Difference: 1 years, 0 days",
	}
	var buf bytes.Buffer
	if err := printComparison(&buf, cmp); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "-0.30") || !strings.Contains(out, "Date Difference") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestParseMaturity(t *testing.T) {
	for _, s := range []string{"10-year", "DGS10"} {
		d, err := parseMaturity(s)
		if err != nil || d.String() != "10-year" {
			t.Errorf("parseMaturity(%q) = %v, %v", s, d, err)
		}
	}
	if _, err := parseMaturity("decade"); err == nil {
		t.Error("expected error")
	}
}
