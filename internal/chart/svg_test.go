package chart

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/yieldcharts/pkg/models"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func parse(t *testing.T, svg string) *goquery.Document {
	t.Helper()
	// well-formed XML first, then query it
	require.NoError(t, xml.Unmarshal([]byte(svg), new(struct{ XMLName xml.Name })), svg)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(svg))
	require.NoError(t, err)
	return doc
}

func sampleChart() models.Chart {
	return models.Chart{
		ID:     "yield_spread",
		Title:  "Yield Differential: 10-year - 2-year",
		YTitle: "Spread (%)",
		Series: []models.NamedSeries{{
			Name: "10-year - 2-year",
			Points: []models.Point{
				{Date: d(2006, 1, 1), Value: 0.1},
				{Date: d(2007, 6, 1), Value: -0.2},
				{Date: d(2009, 1, 1), Value: 1.5},
			},
		}},
		Events: []models.EventMarker{
			{Date: d(2007, 12, 1), Category: "recession_start", Label: "Recession Starts", Color: "red"},
			{Date: d(2001, 3, 1), Category: "recession_start", Label: "Recession Starts", Color: "red"},
			{Date: d(2008, 9, 1), Category: "recession_end", Label: "Recession Ends", Color: "blue"},
		},
		Rules: []models.Rule{{Value: 0, Color: "gray"}},
	}
}

func TestRender(t *testing.T) {
	svg := Render(sampleChart(), Options{})
	doc := parse(t, svg)

	assert.Equal(t, 1, doc.Find("path").Length())
	assert.Contains(t, svg, `stroke="red"`)
	assert.Contains(t, svg, `stroke="blue"`)
	assert.Contains(t, svg, `stroke="gray"`)
	assert.Contains(t, svg, "Yield Differential: 10-year - 2-year")
	// the 2001 event lies before the data and is dropped
	assert.NotContains(t, svg, "2001-03-01")
	assert.Contains(t, svg, "2007-12-01")

	legend := doc.Find("text").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Text() == "Recession Starts"
	})
	assert.Equal(t, 1, legend.Length(), "one legend entry per event category")
	assert.True(t, strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="960" height="360"`))
}

func TestRenderEmpty(t *testing.T) {
	svg := Render(models.Chart{Title: "Nothing"}, WithSize(400, 200))
	parse(t, svg)
	assert.Contains(t, svg, "No data available")
	assert.Contains(t, svg, `width="400"`)
}

func TestRenderSinglePoint(t *testing.T) {
	c := models.Chart{Title: "one", Series: []models.NamedSeries{{Name: "x", Points: []models.Point{{Date: d(2024, 1, 1), Value: 4}}}}}
	doc := parse(t, Render(c, Options{}))
	assert.Equal(t, 1, doc.Find("circle").Length())
}

func TestRenderEscapes(t *testing.T) {
	c := sampleChart()
	c.Title = `Spread <A & B>`
	svg := Render(c, Options{})
	parse(t, svg)
	assert.Contains(t, svg, "Spread &lt;A &amp; B&gt;")
}

func TestRenderCurve(t *testing.T) {
	first := models.DatedCurve{Date: d(2024, 1, 5), Points: []models.CurvePoint{
		{Duration: "3-month", Years: 0.25, Yield: 5.4},
		{Duration: "2-year", Years: 2, Yield: 4.4},
		{Duration: "10-year", Years: 10, Yield: 4.05},
	}}
	second := models.DatedCurve{Date: d(2023, 1, 5), Points: []models.CurvePoint{
		{Duration: "3-month", Years: 0.25, Yield: 4.6},
		{Duration: "10-year", Years: 10, Yield: 3.7},
	}}
	svg := RenderCurve("Yield Curve", first, second, []string{"3-month", "10-year"}, 3.7, 5.4, Options{})
	doc := parse(t, svg)

	assert.Equal(t, 2, doc.Find("path").Length())
	assert.Equal(t, 4, doc.Find("circle").Length(), "2-year is not on both dates")
	assert.Contains(t, svg, "2024-01-05")
	assert.Contains(t, svg, "2023-01-05")

	empty := RenderCurve("Yield Curve", first, second, nil, 0, 0, Options{})
	assert.Contains(t, empty, "No maturities in common")
}

func TestTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, ticks(0, 5, 5))
	assert.Equal(t, 0.5, niceStep(0.45))
	assert.Equal(t, 2.0, niceStep(1.6))

	yearly := timeTicks(d(1965, 1, 1), d(2024, 6, 1))
	require.NotEmpty(t, yearly)
	assert.Equal(t, time.January, yearly[0].Month())
	assert.Equal(t, 0, yearly[0].Year()%10)

	monthly := timeTicks(d(2024, 1, 15), d(2024, 6, 1))
	assert.Equal(t, d(2024, 2, 1), monthly[0])
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "4.5", trimFloat(4.5))
	assert.Equal(t, "0", trimFloat(-0.001))
	assert.Equal(t, "2", trimFloat(2))
}
