package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSortedByDate(t *testing.T) {
	all := For()
	require.Len(t, all, 31)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.Before(all[i-1].Date), "index %d out of order", i)
	}
	assert.Equal(t, "1968-11-01", all[0].Date.Format("2006-01-02"))
	assert.Equal(t, MarketPeak, all[0].Category)
}

func TestForSelectsCategories(t *testing.T) {
	got := For(RecessionStart, RecessionStart)
	assert.Len(t, got, 8)
	for _, a := range got {
		assert.Equal(t, RecessionStart, a.Category)
	}

	got = For(RecessionEnd, MarketTrough)
	assert.Len(t, got, 15)
}

func TestBetween(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2009, 12, 31, 0, 0, 0, 0, time.UTC)

	got := Between(For(RecessionStart, RecessionEnd), start, end)
	var dates []string
	for _, a := range got {
		dates = append(dates, a.Date.Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2001-03-01", "2001-11-01", "2007-12-01", "2009-06-01"}, dates)

	assert.Len(t, Between(For(MarketPeak), start, time.Time{}), 4)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"recession_start": RecessionStart,
		"Recession-End":   RecessionEnd,
		"peaks":           MarketPeak,
		"market_trough":   MarketTrough,
	} {
		c, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c)
	}
	_, err := ParseCategory("earnings")
	assert.Error(t, err)
}

func TestMarkers(t *testing.T) {
	m := Markers(For(MarketTrough))
	require.NotEmpty(t, m)
	assert.Equal(t, "market_trough", m[0].Category)
	assert.Equal(t, "S&P 500 Troughs", m[0].Label)
	assert.Equal(t, "Recession Starts", RecessionStart.Label())
	assert.Equal(t, "red", RecessionStart.Color())
}
