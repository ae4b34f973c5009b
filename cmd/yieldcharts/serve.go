package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seenimoa/yieldcharts/api"
	"github.com/seenimoa/yieldcharts/internal/headlines"
	"github.com/seenimoa/yieldcharts/internal/metrics"
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	Long: `Start the dashboard HTTP server. Unless --no-refresh is given, stale
snapshots are refreshed in the background on start; the dashboard serves
whatever data is on disk meanwhile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		}

		hub := api.NewWSHub(logger)
		c := build(metrics.New(), hub.NotifyRefresh)

		srv, err := api.NewServer(api.Deps{
			Config:    cfg,
			Dashboard: c.dashboard,
			Refresher: c.refresher,
			Headlines: headlines.New(cfg.Headlines, logger),
			Metrics:   c.metrics,
			Hub:       hub,
			Logger:    logger,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("server setup failed: %w", err)
		}

		noRefresh, _ := cmd.Flags().GetBool("no-refresh")
		if cfg.Data.RefreshOnStart && !noRefresh {
			go c.refresher.RefreshIfStale(ctx, cfg.Data.MaxAgeDays)
		}

		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
	serveCmd.Flags().Bool("no-refresh", false, "skip the refresh on start")
}
