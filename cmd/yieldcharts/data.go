package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/yieldcharts/internal/chart"
	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/internal/events"
	"github.com/seenimoa/yieldcharts/internal/export"
	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/refresh"
	"github.com/seenimoa/yieldcharts/internal/series"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/models"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// --- Refresh Command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download fresh data from FRED when the snapshots are stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		maxAge, _ := cmd.Flags().GetInt("max-age")
		if maxAge <= 0 {
			maxAge = cfg.Data.MaxAgeDays
		}

		c := build(metrics.New(), nil)
		var res refresh.Result
		if force {
			res = c.refresher.Force(cmd.Context())
		} else {
			res = c.refresher.RefreshIfStale(cmd.Context(), maxAge)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status:  %s\n", res.Status)
		if !res.Latest.IsZero() {
			fmt.Fprintf(out, "latest:  %s (%d days old)\n", utils.FormatDate(res.Latest), res.AgeDays)
		}
		if len(res.Updated) > 0 {
			fmt.Fprintf(out, "updated: %s\n", strings.Join(res.Updated, ", "))
		}
		if res.Status == refresh.StatusStaleRefreshFailed {
			return fmt.Errorf("refresh failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().Bool("force", false, "download even when the data is fresh")
	refreshCmd.Flags().Int("max-age", 0, "staleness threshold in days (default: data.max_age_days)")
}

// --- Chart Command ---

var chartCmd = &cobra.Command{
	Use:   "chart <yield_spread|yield_range|lowest_yielding|highest_yielding|treasury_rates>",
	Short: "Compute a dashboard chart and print its series",
	Example: `  yieldcharts chart yield_spread --long 10-year --short 3-month
  yieldcharts chart lowest_yielding --interval ME --svg lowest.svg
  yieldcharts chart treasury_rates --maturities DGS2,DGS10 --start 2020-01-01 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := dashboard.ParseChartID(args[0])
		if err != nil {
			return err
		}
		c := build(nil, nil)
		chartCfg, pair, err := chartFlags(cmd, c.dashboard.DefaultConfig(id), c.dashboard.DefaultPair())
		if err != nil {
			return err
		}

		ch, err := c.dashboard.Build(cmd.Context(), id, chartCfg, pair)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("svg"); path != "" {
			svg := chart.Render(ch, chart.WithSize(cfg.Charts.Width, cfg.Charts.Height))
			if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), ch)
		}
		return printChart(cmd.OutOrStdout(), ch)
	},
}

func init() {
	addChartFlags(chartCmd)
	chartCmd.Flags().String("svg", "", "also write the chart as SVG to this file")
	chartCmd.Flags().Bool("json", false, "print JSON instead of a table")
}

func addChartFlags(cmd *cobra.Command) {
	cmd.Flags().String("interval", "", "resample interval: D, W or ME")
	cmd.Flags().String("fill", "", "forward-fill gaps: true or false")
	cmd.Flags().String("start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("maturities", nil, "restrict to these maturities (labels or FRED ids)")
	cmd.Flags().String("long", "", "longer leg of the spread")
	cmd.Flags().String("short", "", "shorter leg of the spread")
}

// chartFlags overlays the chart flags onto the defaults.
func chartFlags(cmd *cobra.Command, c dashboard.ChartConfig, p dashboard.Pair) (dashboard.ChartConfig, dashboard.Pair, error) {
	if v, _ := cmd.Flags().GetString("interval"); v != "" {
		iv, err := series.ParseInterval(v)
		if err != nil {
			return c, p, err
		}
		c.Interval = iv
	}
	if v, _ := cmd.Flags().GetString("fill"); v != "" {
		c.FillGaps = v == "true" || v == "1"
	}
	for name, dst := range map[string]*time.Time{"start": &c.Start, "end": &c.End} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			t, err := utils.ParseDate(v)
			if err != nil {
				return c, p, fmt.Errorf("--%s: %w", name, err)
			}
			*dst = t
		}
	}
	if ms, _ := cmd.Flags().GetStringSlice("maturities"); len(ms) > 0 {
		c.Maturities = nil
		for _, m := range ms {
			d, err := parseMaturity(m)
			if err != nil {
				return c, p, err
			}
			c.Maturities = append(c.Maturities, d)
		}
	}
	for name, dst := range map[string]*maturity.Duration{"long": &p.Long, "short": &p.Short} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			d, err := parseMaturity(v)
			if err != nil {
				return c, p, err
			}
			*dst = d
		}
	}
	return c, p, nil
}

func parseMaturity(s string) (maturity.Duration, error) {
	if d, err := maturity.ParseLabel(s); err == nil {
		return d, nil
	}
	return maturity.Parse(s)
}

// printChart writes one row per date with a column per series.
func printChart(w io.Writer, ch models.Chart) error {
	fmt.Fprintln(w, ch.Title)

	var dates []time.Time
	values := make([]map[time.Time]float64, len(ch.Series))
	seen := map[time.Time]bool{}
	for i, s := range ch.Series {
		values[i] = make(map[time.Time]float64, len(s.Points))
		for _, p := range s.Points {
			values[i][p.Date] = p.Value
			if !seen[p.Date] {
				seen[p.Date] = true
				dates = append(dates, p.Date)
			}
		}
	}
	slices.SortFunc(dates, time.Time.Compare)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"date"}
	for _, s := range ch.Series {
		header = append(header, s.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, d := range dates {
		row := []string{utils.FormatDate(d)}
		for i := range ch.Series {
			if v, ok := values[i][d]; ok {
				row = append(row, fmt.Sprintf("%.3f", v))
			} else {
				row = append(row, "")
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Curve Command ---

var curveCmd = &cobra.Command{
	Use:   "curve <date1> [date2]",
	Short: "Compare the yield curves on two dates",
	Long: `Compare the yield curves on two dates. Each date resolves to the latest
trading day at or before it. date2 defaults to the latest data date.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := build(nil, nil)
		d1, err := utils.ParseDate(args[0])
		if err != nil {
			return err
		}
		var d2 time.Time
		if len(args) == 2 {
			if d2, err = utils.ParseDate(args[1]); err != nil {
				return err
			}
		} else if d2, err = c.dashboard.LatestDate(cmd.Context()); err != nil {
			return err
		}

		cmp, err := c.dashboard.CompareCurves(cmd.Context(), d1, d2)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("svg"); path != "" {
			svg := chart.RenderCurve("Yield Curve Comparison", cmp.First, cmp.Second, cmp.Durations, cmp.YMin, cmp.YMax,
				chart.WithSize(cfg.Charts.Width, cfg.Charts.Height+100))
			if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), cmp)
		}
		return printComparison(cmd.OutOrStdout(), cmp)
	},
}

func init() {
	curveCmd.Flags().String("svg", "", "also write the comparison as SVG to this file")
	curveCmd.Flags().Bool("json", false, "print JSON instead of a table")
}

func printComparison(w io.Writer, cmp dashboard.Comparison) error {
	fmt.Fprintln(w, cmp.DifferenceText)
	first := curveValues(cmp.First)
	second := curveValues(cmp.Second)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "maturity\t%s\t%s\tchange\n", utils.FormatDate(cmp.First.Date), utils.FormatDate(cmp.Second.Date))
	for _, d := range cmp.Durations {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%+.2f\n", d, first[d], second[d], second[d]-first[d])
	}
	return tw.Flush()
}

func curveValues(c models.DatedCurve) map[string]float64 {
	out := make(map[string]float64, len(c.Points))
	for _, p := range c.Points {
		out[p.Duration] = p.Yield
	}
	return out
}

// --- Events Command ---

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recession and S&P 500 peak/trough dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cats []events.Category
		names, _ := cmd.Flags().GetStringSlice("category")
		for _, n := range names {
			c, err := events.ParseCategory(n)
			if err != nil {
				return err
			}
			cats = append(cats, c)
		}
		var start, end time.Time
		if v, _ := cmd.Flags().GetString("start"); v != "" {
			t, err := utils.ParseDate(v)
			if err != nil {
				return err
			}
			start = t
		}
		if v, _ := cmd.Flags().GetString("end"); v != "" {
			t, err := utils.ParseDate(v)
			if err != nil {
				return err
			}
			end = t
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, a := range events.Between(events.For(cats...), start, end) {
			fmt.Fprintf(tw, "%s\t%s\n", utils.FormatDate(a.Date), a.Category.Label())
		}
		return tw.Flush()
	},
}

func init() {
	eventsCmd.Flags().StringSlice("category", nil, "recession_start, recession_end, market_peak, market_trough")
	eventsCmd.Flags().String("start", "", "first date (YYYY-MM-DD)")
	eventsCmd.Flags().String("end", "", "last date (YYYY-MM-DD)")
}

// --- Export Command ---

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Write the combined yields and derived series to an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := build(nil, nil)
		chartCfg, pair, err := chartFlags(cmd, c.dashboard.DefaultConfig(dashboard.YieldRangeChart), c.dashboard.DefaultPair())
		if err != nil {
			return err
		}
		table, err := c.dashboard.Table(cmd.Context(), chartCfg)
		if err != nil {
			return err
		}

		wb := export.Workbook{Table: table, Spread: yields.HighLowSpread(table)}
		wb.Lowest, _ = yields.ExtremumDurations(table, yields.Lowest)
		wb.Highest, _ = yields.ExtremumDurations(table, yields.Highest)
		if table.Has(pair.Long) && table.Has(pair.Short) {
			wb.Differential, _ = yields.Differential(table, pair.Long, pair.Short)
		}
		if dates := table.Dates(); len(dates) > 0 {
			wb.Events = events.Between(events.For(), dates[0], dates[len(dates)-1])
		}

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := export.Write(f, wb); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d dates, %d maturities)\n", args[0], table.Rows(), len(table.Columns()))
		return nil
	},
}

func init() {
	addChartFlags(exportCmd)
}
