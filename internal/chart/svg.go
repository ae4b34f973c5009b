// Package chart renders dashboard charts as standalone SVG documents:
// dated line series, vertical event rules with a legend, and horizontal
// reference rules. Curve comparisons render against a maturity axis.
package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/yieldcharts/pkg/models"
)

// Options holds rendering parameters.
type Options struct {
	Width        int    // SVG width in pixels (default: 960)
	Height       int    // SVG height in pixels (default: 360)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 170, room for the legend)
	MarginBottom int    // bottom margin (default: 40)
	MarginLeft   int    // left margin (default: 60)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
}

// DefaultOptions returns the dashboard's rendering defaults.
func DefaultOptions() Options {
	return Options{
		Width:        960,
		Height:       360,
		MarginTop:    40,
		MarginRight:  170,
		MarginBottom: 40,
		MarginLeft:   60,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// WithSize returns DefaultOptions at the given size. Non-positive values
// keep the default.
func WithSize(width, height int) Options {
	o := DefaultOptions()
	if width > 0 {
		o.Width = width
	}
	if height > 0 {
		o.Height = height
	}
	return o
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.Width == 0 {
		o.Width = d.Width
	}
	if o.Height == 0 {
		o.Height = d.Height
	}
	if o.MarginTop == 0 && o.MarginRight == 0 && o.MarginBottom == 0 && o.MarginLeft == 0 {
		o.MarginTop, o.MarginRight, o.MarginBottom, o.MarginLeft = d.MarginTop, d.MarginRight, d.MarginBottom, d.MarginLeft
	}
	if o.BgColor == "" {
		o.BgColor = d.BgColor
	}
	if o.GridColor == "" {
		o.GridColor = d.GridColor
	}
	if o.TextColor == "" {
		o.TextColor = d.TextColor
	}
	if o.FontSize == 0 {
		o.FontSize = d.FontSize
	}
	return o
}

// plotArea returns the usable drawing area dimensions.
func (o Options) plotArea() (x, y, w, h int) {
	return o.MarginLeft, o.MarginTop,
		o.Width - o.MarginLeft - o.MarginRight,
		o.Height - o.MarginTop - o.MarginBottom
}

// Palette assigns line colors to series without one.
var Palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf", "#393b79", "#637939"}

// CurveColors are the first and second curve of a comparison.
var CurveColors = [2]string{"steelblue", "#a94442"}

// Render draws c as a time chart. Events outside the plotted date range are
// left out.
func Render(c models.Chart, opts Options) string {
	opts = opts.normalize()

	start, end, lo, hi, ok := bounds(c)
	if !ok {
		return emptySVG(opts, c.Title, "No data available")
	}
	if end.Equal(start) {
		end = start.AddDate(0, 0, 1)
	}
	lo, hi = pad(lo, hi)

	px, py, pw, ph := opts.plotArea()
	xOf := func(t time.Time) float64 {
		return float64(px) + float64(pw)*float64(t.Sub(start))/float64(end.Sub(start))
	}
	yOf := func(v float64) float64 {
		return float64(py+ph) - float64(ph)*(v-lo)/(hi-lo)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(opts))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, opts.Width, opts.Height, opts.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="22" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		px+pw/2, opts.TextColor, escapeXML(c.Title))

	// Y-axis grid
	for _, v := range ticks(lo, hi, 6) {
		y := yOf(v)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, opts.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, y+4, opts.FontSize, opts.TextColor, trimFloat(v))
	}
	if c.YTitle != "" {
		fmt.Fprintf(&sb, `<text x="14" y="%d" font-size="%d" fill="%s" text-anchor="middle" transform="rotate(-90,14,%d)">%s</text>`,
			py+ph/2, opts.FontSize, opts.TextColor, py+ph/2, escapeXML(c.YTitle))
	}

	// X-axis labels
	for _, t := range timeTicks(start, end) {
		x := xOf(t)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s"/>`, x, py+ph, x, py+ph+4, opts.TextColor)
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			x, py+ph+16, opts.FontSize, opts.TextColor, timeLabel(t, start, end))
	}
	fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="%s"/>`, px, py, pw, ph, opts.TextColor)

	var legend []legendEntry

	// Horizontal rules
	for _, r := range c.Rules {
		if r.Value < lo || r.Value > hi {
			continue
		}
		y := yOf(r.Value)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-width="1"/>`,
			px, y, px+pw, y, colorOr(r.Color, "gray"))
	}

	// Event rules, one legend entry per category
	seen := map[string]bool{}
	for _, e := range c.Events {
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		x := xOf(e.Date)
		color := colorOr(e.Color, "gray")
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-width="1.5" opacity="0.8"><title>%s %s</title></line>`,
			x, py, x, py+ph, color, escapeXML(e.Label), e.Date.Format("2006-01-02"))
		if !seen[e.Category] {
			seen[e.Category] = true
			legend = append(legend, legendEntry{label: e.Label, color: color, dashed: true})
		}
	}

	// Series
	for si, s := range c.Series {
		color := colorOr(s.Color, Palette[si%len(Palette)])
		var path []string
		for _, p := range s.Points {
			cmd := "L"
			if len(path) == 0 {
				cmd = "M"
			}
			path = append(path, fmt.Sprintf("%s%.1f,%.1f", cmd, xOf(p.Date), yOf(p.Value)))
		}
		if len(path) == 1 {
			p := s.Points[0]
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="2" fill="%s"/>`, xOf(p.Date), yOf(p.Value), color)
		} else if len(path) > 1 {
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="1.5"/>`, strings.Join(path, " "), color)
		}
		legend = append(legend, legendEntry{label: s.Name, color: color})
	}

	writeLegend(&sb, opts, legend)
	sb.WriteString("</svg>")
	return sb.String()
}

type legendEntry struct {
	label  string
	color  string
	dashed bool
}

func writeLegend(sb *strings.Builder, opts Options, entries []legendEntry) {
	px, py, pw, _ := opts.plotArea()
	lx := px + pw + 12
	for i, e := range entries {
		ly := py + 8 + i*18
		width := "2"
		if e.dashed {
			width = "1.5"
		}
		fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="%s"/>`,
			lx, ly, lx+20, ly, e.color, width)
		fmt.Fprintf(sb, `<text x="%d" y="%d" font-size="%d" fill="%s">%s</text>`,
			lx+26, ly+4, opts.FontSize, opts.TextColor, escapeXML(e.label))
	}
}

// bounds returns the plotted date range and value range. The date range is
// the chart's explicit range when set, else the data's.
func bounds(c models.Chart) (start, end time.Time, lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range c.Series {
		first, last, has := s.Span()
		if !has {
			continue
		}
		if !ok || first.Before(start) {
			start = first
		}
		if last.After(end) {
			end = last
		}
		for _, p := range s.Points {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
		ok = true
	}
	if !ok {
		return
	}
	if !c.Start.IsZero() && c.Start.After(start) {
		start = c.Start
	}
	if !c.End.IsZero() && c.End.Before(end) {
		end = c.End
	}
	for _, r := range c.Rules {
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}
	return
}

// pad widens [lo, hi] by 5% on each side.
func pad(lo, hi float64) (float64, float64) {
	r := hi - lo
	if r < 0.001 {
		r = 1
	}
	return lo - r*0.05, hi + r*0.05
}

// ticks returns round values spanning [lo, hi], about n of them.
func ticks(lo, hi float64, n int) []float64 {
	step := niceStep((hi - lo) / float64(n))
	var out []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

// timeTicks returns January firsts for multi-year spans, month starts for
// shorter ones.
func timeTicks(start, end time.Time) []time.Time {
	years := end.Sub(start).Hours() / 24 / 365.25
	var out []time.Time
	if years >= 2 {
		step := int(niceStep(years / 8))
		if step < 1 {
			step = 1
		}
		y := start.Year() + 1
		if rem := y % step; rem != 0 {
			y += step - rem
		}
		for ; y <= end.Year(); y += step {
			out = append(out, time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC))
		}
		return out
	}
	months := int(math.Ceil(years * 12 / 8))
	if months < 1 {
		months = 1
	}
	t := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	for ; !t.After(end); t = t.AddDate(0, months, 0) {
		out = append(out, t)
	}
	return out
}

func timeLabel(t, start, end time.Time) string {
	if end.Sub(start).Hours()/24/365.25 >= 2 {
		return t.Format("2006")
	}
	return t.Format("Jan 2006")
}

// RenderCurve draws two dated yield curves against a maturity axis. Only
// durations listed in order are plotted; y bounds are taken as given.
func RenderCurve(title string, first, second models.DatedCurve, order []string, yMin, yMax float64, opts Options) string {
	opts = opts.normalize()
	if len(order) == 0 {
		return emptySVG(opts, title, "No maturities in common")
	}
	if yMax <= yMin {
		yMin, yMax = yMin-0.5, yMin+0.5
	}

	px, py, pw, ph := opts.plotArea()
	slot := float64(pw) / float64(len(order))
	index := make(map[string]int, len(order))
	for i, d := range order {
		index[d] = i
	}
	xOf := func(i int) float64 { return float64(px) + slot*(float64(i)+0.5) }
	yOf := func(v float64) float64 { return float64(py+ph) - float64(ph)*(v-yMin)/(yMax-yMin) }

	var sb strings.Builder
	sb.WriteString(svgHeader(opts))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, opts.Width, opts.Height, opts.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="22" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		px+pw/2, opts.TextColor, escapeXML(title))

	for _, v := range ticks(yMin, yMax, 5) {
		y := yOf(v)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, opts.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, y+4, opts.FontSize, opts.TextColor, trimFloat(v))
	}
	for i, d := range order {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			xOf(i), py+ph+16, opts.FontSize, opts.TextColor, escapeXML(d))
	}
	fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="%s"/>`, px, py, pw, ph, opts.TextColor)

	var legend []legendEntry
	for ci, c := range []models.DatedCurve{first, second} {
		color := CurveColors[ci]
		pts := make([]models.CurvePoint, 0, len(c.Points))
		for _, p := range c.Points {
			if _, ok := index[p.Duration]; ok {
				pts = append(pts, p)
			}
		}
		sort.SliceStable(pts, func(i, j int) bool { return index[pts[i].Duration] < index[pts[j].Duration] })

		var path []string
		for _, p := range pts {
			cmd := "L"
			if len(path) == 0 {
				cmd = "M"
			}
			x, y := xOf(index[p.Duration]), yOf(p.Yield)
			path = append(path, fmt.Sprintf("%s%.1f,%.1f", cmd, x, y))
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"><title>%s %s%%</title></circle>`,
				x, y, color, escapeXML(p.Duration), trimFloat(p.Yield))
		}
		if len(path) > 1 {
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`, strings.Join(path, " "), color)
		}
		legend = append(legend, legendEntry{label: c.Date.Format("2006-01-02"), color: color})
	}

	writeLegend(&sb, opts, legend)
	sb.WriteString("</svg>")
	return sb.String()
}

func svgHeader(o Options) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		o.Width, o.Height, o.Width, o.Height)
}

func emptySVG(o Options, title, msg string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="22" text-anchor="middle" fill="%s" font-size="14" font-weight="bold">%s</text><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		o.Width, o.Height, o.Width, o.Height, o.Width/2, o.TextColor, escapeXML(title), o.Width/2, o.Height/2, escapeXML(msg))
}

func colorOr(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
