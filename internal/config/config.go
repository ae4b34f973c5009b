// Package config handles configuration loading for yieldcharts.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/seenimoa/yieldcharts/internal/maturity"
)

// Config represents the complete application configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data"      yaml:"data"      json:"data"`
	FRED      FREDConfig      `mapstructure:"fred"      yaml:"fred"      json:"fred"`
	Charts    ChartsConfig    `mapstructure:"charts"    yaml:"charts"    json:"charts"`
	Headlines HeadlinesConfig `mapstructure:"headlines" yaml:"headlines" json:"headlines"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"       json:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"   json:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
}

// DataConfig locates the CSV snapshots and controls staleness.
type DataConfig struct {
	Dir             string   `mapstructure:"dir"              yaml:"dir"              json:"dir"              validate:"required"`
	Series          []string `mapstructure:"series"           yaml:"series"           json:"series"           validate:"required,min=1,dive,seriesid"`
	ReferenceSeries string   `mapstructure:"reference_series" yaml:"reference_series" json:"reference_series" validate:"required,seriesid"`
	MaxAgeDays      int      `mapstructure:"max_age_days"     yaml:"max_age_days"     json:"max_age_days"     validate:"gte=1"`
	RefreshOnStart  bool     `mapstructure:"refresh_on_start" yaml:"refresh_on_start" json:"refresh_on_start"`
}

// FREDConfig holds the observations API settings. The key is never
// serialised.
type FREDConfig struct {
	APIKey            string `mapstructure:"api_key"             yaml:"-"                   json:"-"`
	BaseURL           string `mapstructure:"base_url"            yaml:"base_url"            json:"base_url"            validate:"required,url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=1"`
	TimeoutSec        int    `mapstructure:"timeout_sec"         yaml:"timeout_sec"         json:"timeout_sec"         validate:"gte=1"`
	Concurrency       int    `mapstructure:"concurrency"         yaml:"concurrency"         json:"concurrency"         validate:"gte=1,lte=16"`
}

// ChartsConfig holds the dashboard defaults. Each request may override them.
type ChartsConfig struct {
	StartDate       string `mapstructure:"start_date"       yaml:"start_date"       json:"start_date"       validate:"required,datetime=2006-01-02"`
	SpreadLong      string `mapstructure:"spread_long"      yaml:"spread_long"      json:"spread_long"      validate:"required,maturity"`
	SpreadShort     string `mapstructure:"spread_short"     yaml:"spread_short"     json:"spread_short"     validate:"required,maturity,nefield=SpreadLong"`
	LowestInterval  string `mapstructure:"lowest_interval"  yaml:"lowest_interval"  json:"lowest_interval"  validate:"interval"`
	HighestInterval string `mapstructure:"highest_interval" yaml:"highest_interval" json:"highest_interval" validate:"interval"`
	Width           int    `mapstructure:"width"            yaml:"width"            json:"width"            validate:"gte=200,lte=4000"`
	Height          int    `mapstructure:"height"           yaml:"height"           json:"height"           validate:"gte=100,lte=3000"`
}

// HeadlinesConfig controls the Fed press-release panel.
type HeadlinesConfig struct {
	Enabled    bool   `mapstructure:"enabled"     yaml:"enabled"     json:"enabled"`
	FeedURL    string `mapstructure:"feed_url"    yaml:"feed_url"    json:"feed_url"    validate:"required_if=Enabled true,omitempty,url"`
	Limit      int    `mapstructure:"limit"       yaml:"limit"       json:"limit"       validate:"gte=0,lte=50"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec" validate:"gte=1"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"         validate:"gte=1,lte=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"        json:"level"        validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format"       yaml:"format"       json:"format"       validate:"oneof=text json"`
	Output     string `mapstructure:"output"       yaml:"output"       json:"output"       validate:"oneof=stdout file both"`
	FilePath   string `mapstructure:"file_path"    yaml:"file_path"    json:"file_path"    validate:"required_unless=Output stdout"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  json:"max_size_mb"  validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"  json:"max_backups"  validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"     json:"compress"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Tracing     string  `mapstructure:"tracing"      yaml:"tracing"      json:"tracing"      validate:"oneof=none stdout"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio" json:"sample_ratio" validate:"gte=0,lte=1"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name" json:"service_name" validate:"required"`
}

const envPrefix = "YIELDCHARTS"

var (
	activeMu   sync.RWMutex
	activeFile string
)

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.yieldcharts/config.yaml (home directory)
//  3. /etc/yieldcharts/config.yaml (system)
//
// Environment variables override config file values.
// Format: YIELDCHARTS_<SECTION>_<KEY>, e.g., YIELDCHARTS_DATA_MAX_AGE_DAYS
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".yieldcharts"))
	v.AddConfigPath("/etc/yieldcharts")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	setActiveFile(v.ConfigFileUsed())

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	setActiveFile(path)

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Data
	v.SetDefault("data.dir", filepath.Join("data", "treasury-constant-maturity"))
	v.SetDefault("data.series", maturity.DefaultSeries)
	v.SetDefault("data.reference_series", "DGS30")
	v.SetDefault("data.max_age_days", 7)
	v.SetDefault("data.refresh_on_start", true)

	// FRED
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.requests_per_minute", 120)
	v.SetDefault("fred.timeout_sec", 30)
	v.SetDefault("fred.concurrency", 4)

	// Charts
	v.SetDefault("charts.start_date", "1965-01-01")
	v.SetDefault("charts.spread_long", "10-year")
	v.SetDefault("charts.spread_short", "2-year")
	v.SetDefault("charts.lowest_interval", "W")
	v.SetDefault("charts.highest_interval", "ME")
	v.SetDefault("charts.width", 960)
	v.SetDefault("charts.height", 360)

	// Headlines
	v.SetDefault("headlines.enabled", true)
	v.SetDefault("headlines.feed_url", "https://www.federalreserve.gov/feeds/press_monetary.xml")
	v.SetDefault("headlines.limit", 5)
	v.SetDefault("headlines.timeout_sec", 10)

	// API
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:8080"})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", filepath.Join("logs", "yieldcharts.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	// Telemetry
	v.SetDefault("telemetry.tracing", "none")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "yieldcharts")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The bare FRED_API_KEY is honoured when the prefixed variable is unset.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(envPrefix + "_FRED_API_KEY"); key != "" {
		cfg.FRED.APIKey = key
		return
	}
	if cfg.FRED.APIKey == "" {
		if key := os.Getenv("FRED_API_KEY"); key != "" {
			cfg.FRED.APIKey = key
		}
	}
}

// ConfigFilePath returns the file the running configuration was read from,
// or the project-local default when none was found.
func ConfigFilePath() string {
	activeMu.RLock()
	defer activeMu.RUnlock()
	if activeFile != "" {
		return activeFile
	}
	return filepath.Join("config", "config.yaml")
}

func setActiveFile(path string) {
	if path == "" {
		return
	}
	activeMu.Lock()
	activeFile = path
	activeMu.Unlock()
}

// SaveToFile writes cfg as YAML to path, creating parent directories. The
// FRED key is left out.
func SaveToFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("data", cfg.Data)
	v.Set("fred", cfg.FRED)
	v.Set("charts", cfg.Charts)
	v.Set("headlines", cfg.Headlines)
	v.Set("api", cfg.API)
	v.Set("logging", cfg.Logging)
	v.Set("telemetry", cfg.Telemetry)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
