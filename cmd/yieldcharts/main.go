// yieldcharts renders U.S. Treasury yield curve charts from FRED data.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/yieldcharts/internal/config"
	"github.com/seenimoa/yieldcharts/internal/dashboard"
	"github.com/seenimoa/yieldcharts/internal/fred"
	"github.com/seenimoa/yieldcharts/internal/logging"
	"github.com/seenimoa/yieldcharts/internal/metrics"
	"github.com/seenimoa/yieldcharts/internal/refresh"
	"github.com/seenimoa/yieldcharts/internal/telemetry"
	"github.com/seenimoa/yieldcharts/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state set up by PersistentPreRunE.
var (
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	tracing   *telemetry.Provider
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "yieldcharts",
	Short: "U.S. Treasury yield curve dashboard",
	Long: `yieldcharts downloads constant-maturity Treasury yields and the Fed
Funds rate from FRED, keeps them as CSV snapshots and renders the yield
curve charts: the 10yr-2yr spread, the high-low spread, the lowest and
highest yielding maturities and dated curve comparisons.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
			cfg.Data.Dir = dir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, logCloser, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger)

		tracing, err = telemetry.Setup(cfg.Telemetry, version, logger)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tracing != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				logger.Warn("tracer shutdown", "error", err)
			}
		}
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data-dir", "", "snapshot directory override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(curveCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("check", false, "verify the FRED key against the API")
}

// components are the services every command builds from cfg.
type components struct {
	metrics   *metrics.Metrics
	dashboard *dashboard.Service
	refresher *refresh.Refresher
}

func build(m *metrics.Metrics, notify func(refresh.Result)) components {
	tracer := tracing.Tracer
	client := fred.New(cfg.FRED, fred.WithLogger(logger))
	opts := []refresh.Option{
		refresh.WithLogger(logger),
		refresh.WithMetrics(m),
		refresh.WithTracer(tracer),
	}
	if notify != nil {
		opts = append(opts, refresh.WithNotify(notify))
	}
	return components{
		metrics:   m,
		dashboard: dashboard.New(cfg, dashboard.WithLogger(logger), dashboard.WithMetrics(m), dashboard.WithTracer(tracer)),
		refresher: refresh.New(cfg.Data, cfg.FRED.Concurrency, client, opts...),
	}
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("yieldcharts %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data freshness and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := build(nil, nil)
		age, latest := c.refresher.Age()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  yieldcharts: status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintf(out, "  Time (ET):     %s\n", utils.NowET().Format("2006-01-02 15:04 MST"))
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Data:")
		fmt.Fprintf(out, "    Directory:     %s\n", cfg.Data.Dir)
		fmt.Fprintf(out, "    Series:        %d (reference %s)\n", len(cfg.Data.Series), cfg.Data.ReferenceSeries)
		if age < 0 {
			fmt.Fprintln(out, "    Latest:        no snapshot")
		} else {
			state := "fresh"
			if age >= cfg.Data.MaxAgeDays {
				state = "stale"
			}
			fmt.Fprintf(out, "    Latest:        %s (%d days, %s)\n", utils.FormatDate(latest), age, state)
		}
		fmt.Fprintf(out, "    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}
		if check, _ := cmd.Flags().GetBool("check"); check && cfg.HasFREDKey() {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.FRED.TimeoutSec)*time.Second)
			defer cancel()
			if err := fred.New(cfg.FRED, fred.WithLogger(logger)).Ping(ctx); err != nil {
				fmt.Fprintf(out, "    %-25s unreachable (%v)\n", "FRED:", err)
			} else {
				fmt.Fprintf(out, "    %-25s reachable\n", "FRED:")
			}
		}
		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}
