// Package api: configuration management endpoints.
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/render"

	"github.com/seenimoa/yieldcharts/internal/config"
)

// configMu serialises writes to the config file.
var configMu sync.Mutex

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     config.Config `json:"config"`
	ConfigFile string        `json:"config_file"` // path to the active config file
}

// handleGetConfig returns the running configuration. The FRED key is
// excluded by its json:"-" tag.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, ConfigResponse{
		Config:     s.currentConfig(),
		ConfigFile: config.ConfigFilePath(),
	})
}

// handleUpdateConfig merges a partial configuration into the running one,
// validates the result, persists it and applies the chart defaults. Other
// sections take effect on restart.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := render.DecodeJSON(r.Body, &incoming); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	configMu.Lock()
	defer configMu.Unlock()

	merged := s.currentConfig()
	mergeConfig(&merged, &incoming)
	if err := merged.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cfgPath := config.ConfigFilePath()
	if err := config.SaveToFile(&merged, cfgPath); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to save config: "+err.Error())
		return
	}

	s.cfgMu.Lock()
	*s.cfg = merged
	s.cfgMu.Unlock()
	s.dash.SetDefaults(merged.Charts)
	s.logger.Info("configuration updated", "file", cfgPath)

	writeData(w, r, ConfigResponse{Config: merged, ConfigFile: cfgPath})
}

// handleGetConfigKeys returns the status of the FRED credentials.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	writeData(w, r, config.CheckAPIKeys(&cfg))
}

// mergeConfig copies non-zero/non-empty values from src into dst.
func mergeConfig(dst, src *config.Config) {
	// Data
	if src.Data.Dir != "" {
		dst.Data.Dir = src.Data.Dir
	}
	if len(src.Data.Series) > 0 {
		dst.Data.Series = src.Data.Series
	}
	if src.Data.ReferenceSeries != "" {
		dst.Data.ReferenceSeries = src.Data.ReferenceSeries
	}
	if src.Data.MaxAgeDays != 0 {
		dst.Data.MaxAgeDays = src.Data.MaxAgeDays
	}

	// FRED
	if src.FRED.BaseURL != "" {
		dst.FRED.BaseURL = src.FRED.BaseURL
	}
	if src.FRED.RequestsPerMinute != 0 {
		dst.FRED.RequestsPerMinute = src.FRED.RequestsPerMinute
	}
	if src.FRED.TimeoutSec != 0 {
		dst.FRED.TimeoutSec = src.FRED.TimeoutSec
	}
	if src.FRED.Concurrency != 0 {
		dst.FRED.Concurrency = src.FRED.Concurrency
	}

	// Charts
	if src.Charts.StartDate != "" {
		dst.Charts.StartDate = src.Charts.StartDate
	}
	if src.Charts.SpreadLong != "" {
		dst.Charts.SpreadLong = src.Charts.SpreadLong
	}
	if src.Charts.SpreadShort != "" {
		dst.Charts.SpreadShort = src.Charts.SpreadShort
	}
	if src.Charts.LowestInterval != "" {
		dst.Charts.LowestInterval = src.Charts.LowestInterval
	}
	if src.Charts.HighestInterval != "" {
		dst.Charts.HighestInterval = src.Charts.HighestInterval
	}
	if src.Charts.Width != 0 {
		dst.Charts.Width = src.Charts.Width
	}
	if src.Charts.Height != 0 {
		dst.Charts.Height = src.Charts.Height
	}

	// Headlines
	if src.Headlines.FeedURL != "" {
		dst.Headlines.FeedURL = src.Headlines.FeedURL
	}
	if src.Headlines.Limit != 0 {
		dst.Headlines.Limit = src.Headlines.Limit
	}
	if src.Headlines.TimeoutSec != 0 {
		dst.Headlines.TimeoutSec = src.Headlines.TimeoutSec
	}

	// API
	if src.API.Host != "" {
		dst.API.Host = src.API.Host
	}
	if src.API.Port != 0 {
		dst.API.Port = src.API.Port
	}
	if len(src.API.CORSOrigins) > 0 {
		dst.API.CORSOrigins = src.API.CORSOrigins
	}

	// Logging
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}

	// Telemetry
	if src.Telemetry.Tracing != "" {
		dst.Telemetry.Tracing = src.Telemetry.Tracing
	}
}
