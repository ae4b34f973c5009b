package series

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/yieldcharts/internal/maturity"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func obs(date string, v float64) Observation {
	return Observation{Date: day(date), Value: v}
}

func gap(date string) Observation {
	return Observation{Date: day(date), Missing: true}
}

func TestLoad(t *testing.T) {
	in := "observation_date,DGS2\n2024-01-02,4.33\n2024-01-03,\n2024-01-04,.\n2024-01-05,4.40\n"
	s, err := Load(strings.NewReader(in), "DGS2.csv")
	require.NoError(t, err)

	assert.Equal(t, "2-year", s.Label.String())
	require.Len(t, s.Observations, 4)
	assert.Equal(t, obs("2024-01-02", 4.33), s.Observations[0])
	assert.True(t, s.Observations[1].Missing, "blank cell is missing, not zero")
	assert.True(t, s.Observations[2].Missing, "dot cell is missing")
	assert.Equal(t, 2, s.Valid())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 4.40, last.Value)
}

func TestLoadWithoutHeader(t *testing.T) {
	s, err := Load(strings.NewReader("2024-01-02,5.33\n2024-01-03,5.33\n"), "FF")
	require.NoError(t, err)
	assert.True(t, s.Label.IsFedFunds())
	assert.Equal(t, 2, s.Len())
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"duplicate date", "date,DGS1\n2024-01-02,1\n2024-01-02,2\n"},
		{"descending dates", "date,DGS1\n2024-01-03,1\n2024-01-02,2\n"},
		{"bad value", "date,DGS1\n2024-01-02,abc\n"},
		{"bad date", "date,DGS1\n2024-01-02,1\nnot-a-date,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in), "DGS1")
			var fe *FileError
			require.Error(t, err)
			assert.True(t, errors.As(err, &fe), "want *FileError, got %T", err)
		})
	}
}

func TestLoadUnknownIdentifier(t *testing.T) {
	_, err := Load(strings.NewReader("2024-01-02,1\n"), "T10Y2Y")
	var pe *maturity.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestLoadDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("DGS10.csv", "observation_date,DGS10\n2024-01-02,3.95\n")
	write("DGS3MO.csv", "observation_date,DGS3MO\n2024-01-02,5.40\n")
	write("FF.csv", "observation_date,FF\n2024-01-02,5.33\n")
	write("BOGUS.csv", "observation_date,BOGUS\n2024-01-02,1\n")
	write("notes.txt", "ignored")

	set, err := LoadDir(dir, nil, nil)
	require.NoError(t, err)

	var labels []string
	for _, d := range set.Labels() {
		labels = append(labels, d.String())
	}
	assert.Equal(t, []string{"0-month", "3-month", "10-year"}, labels)
	require.Len(t, set.Skipped, 1)

	only := set.Only([]maturity.Duration{{Count: 10, Unit: maturity.Year}})
	require.Len(t, only.Series, 1)
	_, ok := only.Get(maturity.Duration{Count: 10, Unit: maturity.Year})
	assert.True(t, ok)
}

func TestLoadDirNamedIdentifiers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DGS2.csv"), []byte("d,DGS2\n2024-01-02,4.3\n"), 0o644))

	set, err := LoadDir(dir, []string{"DGS2", "DGS30"}, nil)
	require.NoError(t, err)
	assert.Len(t, set.Series, 1)
	assert.Len(t, set.Skipped, 1, "missing DGS30.csv is skipped, not fatal")
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}

func TestPeriodEnd(t *testing.T) {
	tests := []struct {
		iv   Interval
		in   string
		want string
	}{
		{Daily, "2024-02-14", "2024-02-14"},
		{Weekly, "2024-01-01", "2024-01-07"}, // Monday
		{Weekly, "2024-01-07", "2024-01-07"}, // Sunday
		{Weekly, "2024-01-06", "2024-01-07"},
		{MonthEnd, "2024-02-01", "2024-02-29"},
		{MonthEnd, "2023-12-31", "2023-12-31"},
	}
	for _, tt := range tests {
		assert.Equal(t, day(tt.want), tt.iv.PeriodEnd(day(tt.in)), "%s %s", tt.iv, tt.in)
	}
}

func TestParseInterval(t *testing.T) {
	for in, want := range map[string]Interval{"D": Daily, "w": Weekly, "ME": MonthEnd, "M": MonthEnd} {
		iv, err := ParseInterval(in)
		require.NoError(t, err)
		assert.Equal(t, want, iv)
	}
	_, err := ParseInterval("Q")
	assert.Error(t, err)
}

func TestResampleWeeklyMean(t *testing.T) {
	s := MaturitySeries{Label: maturity.Duration{Count: 2, Unit: maturity.Year}, Observations: []Observation{
		obs("2024-01-02", 4.0),
		obs("2024-01-03", 4.2),
		gap("2024-01-04"),
		// no data in the week ending 2024-01-14
		obs("2024-01-16", 5.0),
	}}

	got := Resample(s, Weekly, false)
	require.Len(t, got.Observations, 3)
	assert.Equal(t, day("2024-01-07"), got.Observations[0].Date)
	assert.InDelta(t, 4.1, got.Observations[0].Value, 1e-9)
	assert.True(t, got.Observations[1].Missing)
	assert.Equal(t, day("2024-01-21"), got.Observations[2].Date)
	assert.Equal(t, 5.0, got.Observations[2].Value)

	filled := Resample(s, Weekly, true)
	require.Len(t, filled.Observations, 3)
	// forward fill happens before aggregation: 2024-01-04 counts as 4.2
	assert.InDelta(t, (4.0+4.2+4.2)/3, filled.Observations[0].Value, 1e-9)
	assert.False(t, filled.Observations[1].Missing)
	assert.Equal(t, 4.2, filled.Observations[1].Value)
}

func TestResampleFillsDailyGap(t *testing.T) {
	s := MaturitySeries{Observations: []Observation{obs("2024-03-01", 1.0), obs("2024-03-04", 4.0)}}

	got := Resample(s, Daily, true)
	require.Len(t, got.Observations, 4)
	for i, want := range []float64{1.0, 1.0, 1.0, 4.0} {
		assert.False(t, got.Observations[i].Missing, "row %d", i)
		assert.Equal(t, want, got.Observations[i].Value, "row %d", i)
	}
}

func TestResampleKeepsLeadingGap(t *testing.T) {
	s := MaturitySeries{Observations: []Observation{gap("2024-03-01"), gap("2024-03-02"), obs("2024-03-03", 2.5)}}

	got := Resample(s, Daily, true)
	require.Len(t, got.Observations, 3)
	assert.True(t, got.Observations[0].Missing)
	assert.True(t, got.Observations[1].Missing)
	assert.Equal(t, 2.5, got.Observations[2].Value)
}

func TestResampleRoundTripOnNativeGrid(t *testing.T) {
	daily := MaturitySeries{Observations: []Observation{
		obs("2024-03-01", 1.11), obs("2024-03-02", 1.12), gap("2024-03-03"), obs("2024-03-04", 1.14),
	}}
	got := Resample(daily, Daily, false)
	require.Equal(t, len(daily.Observations), len(got.Observations))
	for i := range daily.Observations {
		assert.Equal(t, daily.Observations[i].Date, got.Observations[i].Date)
		assert.Equal(t, daily.Observations[i].Missing, got.Observations[i].Missing)
		assert.InDelta(t, daily.Observations[i].Value, got.Observations[i].Value, 1e-12)
	}

	monthly := MaturitySeries{Observations: []Observation{obs("2024-01-31", 3.0), obs("2024-02-29", 3.5)}}
	assert.Equal(t, monthly, Resample(monthly, MonthEnd, false))
}

func TestResampleIdempotent(t *testing.T) {
	s := MaturitySeries{Observations: []Observation{
		obs("2023-12-28", 3.8), obs("2023-12-29", 3.9), gap("2024-01-02"),
		obs("2024-01-03", 4.0), obs("2024-01-19", 4.4), obs("2024-02-07", 4.1),
	}}
	for _, iv := range []Interval{Daily, Weekly, MonthEnd} {
		for _, fill := range []bool{false, true} {
			once := Resample(s, iv, fill)
			assert.Equal(t, once, Resample(once, iv, fill), "%s fill=%v", iv, fill)
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	got := Resample(MaturitySeries{Label: maturity.FedFunds}, Weekly, true)
	assert.Equal(t, maturity.FedFunds, got.Label)
	assert.Empty(t, got.Observations)
}

func TestBetweenAndAt(t *testing.T) {
	s := MaturitySeries{Observations: []Observation{obs("2024-01-01", 1), obs("2024-01-02", 2), obs("2024-01-03", 3)}}

	sub := s.Between(day("2024-01-02"), time.Time{})
	require.Len(t, sub.Observations, 2)
	assert.Equal(t, 2.0, sub.Observations[0].Value)

	o, ok := s.At(day("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 3.0, o.Value)
	_, ok = s.At(day("2024-01-04"))
	assert.False(t, ok)
}

func TestNamedDropsMissing(t *testing.T) {
	s := MaturitySeries{Label: maturity.Duration{Count: 6, Unit: maturity.Month},
		Observations: []Observation{obs("2024-01-01", 1), gap("2024-01-02")}}
	ns := s.Named("")
	assert.Equal(t, "6-month", ns.Name)
	assert.Equal(t, 1, ns.Len())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "4.33", FormatValue(obs("2024-01-01", 4.33)))
	assert.Equal(t, "", FormatValue(gap("2024-01-01")))
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "DGS5.csv")
	in := []Observation{obs("2024-01-02", 3.9), gap("2024-01-03"), obs("2024-01-04", 4.05)}
	require.NoError(t, WriteFile(path, "DGS5", in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "observation_date,DGS5\n2024-01-02,3.9\n2024-01-03,\n2024-01-04,4.05\n", string(raw))

	back, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, back.Observations)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}
