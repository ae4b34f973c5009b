package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, e := range []string{"YIELDCHARTS_FRED_API_KEY", "FRED_API_KEY"} {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Data.Dir != filepath.Join("data", "treasury-constant-maturity") {
		t.Errorf("Data.Dir: got %q", cfg.Data.Dir)
	}
	if len(cfg.Data.Series) != 12 {
		t.Errorf("Data.Series: got %d ids, want 12", len(cfg.Data.Series))
	}
	if cfg.Data.ReferenceSeries != "DGS30" {
		t.Errorf("Data.ReferenceSeries: got %q, want DGS30", cfg.Data.ReferenceSeries)
	}
	if cfg.Data.MaxAgeDays != 7 {
		t.Errorf("Data.MaxAgeDays: got %d, want 7", cfg.Data.MaxAgeDays)
	}
	if !cfg.Data.RefreshOnStart {
		t.Error("Data.RefreshOnStart should be true by default")
	}

	if cfg.FRED.APIKey != "" {
		t.Errorf("FRED.APIKey should be empty, got %q", cfg.FRED.APIKey)
	}
	if cfg.FRED.RequestsPerMinute != 120 {
		t.Errorf("FRED.RequestsPerMinute: got %d, want 120", cfg.FRED.RequestsPerMinute)
	}
	if cfg.FRED.Concurrency != 4 {
		t.Errorf("FRED.Concurrency: got %d, want 4", cfg.FRED.Concurrency)
	}

	if cfg.Charts.StartDate != "1965-01-01" {
		t.Errorf("Charts.StartDate: got %q", cfg.Charts.StartDate)
	}
	if cfg.Charts.SpreadLong != "10-year" || cfg.Charts.SpreadShort != "2-year" {
		t.Errorf("Charts spread pair: got %q/%q", cfg.Charts.SpreadLong, cfg.Charts.SpreadShort)
	}
	if cfg.Charts.LowestInterval != "W" || cfg.Charts.HighestInterval != "ME" {
		t.Errorf("Charts intervals: got %q/%q", cfg.Charts.LowestInterval, cfg.Charts.HighestInterval)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if cfg.Telemetry.Tracing != "none" {
		t.Errorf("Telemetry.Tracing: got %q", cfg.Telemetry.Tracing)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultMatchesLoad(t *testing.T) {
	clearKeyEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	def := Default()
	if def.Charts != cfg.Charts || def.Data.Dir != cfg.Data.Dir {
		t.Errorf("Default() differs from Load(): %+v vs %+v", def.Charts, cfg.Charts)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearKeyEnv(t)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
data:
  dir: "/srv/yields"
  series: ["FF", "DGS2", "DGS10"]
  reference_series: "DGS10"
  max_age_days: 1
fred:
  api_key: "file-key-1234567890"
charts:
  spread_long: "30-year"
  spread_short: "3-month"
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if cfg.Data.Dir != "/srv/yields" {
		t.Errorf("Data.Dir: got %q", cfg.Data.Dir)
	}
	if len(cfg.Data.Series) != 3 || cfg.Data.Series[2] != "DGS10" {
		t.Errorf("Data.Series: got %v", cfg.Data.Series)
	}
	if cfg.Data.MaxAgeDays != 1 {
		t.Errorf("Data.MaxAgeDays: got %d, want 1", cfg.Data.MaxAgeDays)
	}
	if cfg.FRED.APIKey != "file-key-1234567890" {
		t.Errorf("FRED.APIKey: got %q", cfg.FRED.APIKey)
	}
	if cfg.Charts.SpreadLong != "30-year" {
		t.Errorf("Charts.SpreadLong: got %q", cfg.Charts.SpreadLong)
	}
	// untouched keys keep their defaults
	if cfg.Charts.LowestInterval != "W" {
		t.Errorf("Charts.LowestInterval: got %q, want W", cfg.Charts.LowestInterval)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q", cfg.Logging.Format)
	}
	if ConfigFilePath() != cfgPath {
		t.Errorf("ConfigFilePath: got %q, want %q", ConfigFilePath(), cfgPath)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("YIELDCHARTS_DATA_MAX_AGE_DAYS", "3")
	t.Setenv("YIELDCHARTS_API_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Data.MaxAgeDays != 3 {
		t.Errorf("Data.MaxAgeDays: got %d, want 3", cfg.Data.MaxAgeDays)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port: got %d, want 7070", cfg.API.Port)
	}
}

// ── SaveToFile ──

func TestSaveToFileRoundTrip(t *testing.T) {
	clearKeyEnv(t)

	cfg := Default()
	cfg.FRED.APIKey = "secret-key-should-not-persist"
	cfg.Charts.SpreadShort = "3-month"
	cfg.Data.MaxAgeDays = 2

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if strings.Contains(string(raw), "secret-key") {
		t.Error("saved config must not contain the FRED key")
	}

	back, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if back.Charts.SpreadShort != "3-month" {
		t.Errorf("Charts.SpreadShort: got %q", back.Charts.SpreadShort)
	}
	if back.Data.MaxAgeDays != 2 {
		t.Errorf("Data.MaxAgeDays: got %d", back.Data.MaxAgeDays)
	}
}

// ── Validate ──

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown series", func(c *Config) { c.Data.Series = []string{"DGS10", "GDP"} }, "series"},
		{"bad reference", func(c *Config) { c.Data.ReferenceSeries = "T10Y2Y" }, "reference_series"},
		{"zero max age", func(c *Config) { c.Data.MaxAgeDays = 0 }, "max_age_days"},
		{"bad interval", func(c *Config) { c.Charts.LowestInterval = "Q" }, "lowest_interval"},
		{"bad maturity", func(c *Config) { c.Charts.SpreadLong = "ten years" }, "spread_long"},
		{"same spread pair", func(c *Config) { c.Charts.SpreadShort = c.Charts.SpreadLong }, "spread_short"},
		{"bad start", func(c *Config) { c.Charts.StartDate = "1965/01/01" }, "start_date"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "port"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "level"},
		{"file log without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "file_path"},
		{"bad tracing", func(c *Config) { c.Telemetry.Tracing = "jaeger" }, "tracing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("FRED_API_KEY", "bare-fred-key")

	cfg := &Config{}
	overrideFromEnv(cfg)
	if cfg.FRED.APIKey != "bare-fred-key" {
		t.Errorf("FRED.APIKey from FRED_API_KEY: got %q", cfg.FRED.APIKey)
	}

	t.Setenv("YIELDCHARTS_FRED_API_KEY", "prefixed-key")
	overrideFromEnv(cfg)
	if cfg.FRED.APIKey != "prefixed-key" {
		t.Errorf("prefixed variable should win, got %q", cfg.FRED.APIKey)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearKeyEnv(t)

	cfg := &Config{FRED: FREDConfig{APIKey: "from-config"}}
	overrideFromEnv(cfg)

	if cfg.FRED.APIKey != "from-config" {
		t.Errorf("APIKey should stay as 'from-config' when env is unset, got %q", cfg.FRED.APIKey)
	}
}

// ── maskKey ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"abcdef1234567890abcdef1234567890", "abc...890"},
	}
	for _, tc := range tests {
		if got := maskKey(tc.input); got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeys(t *testing.T) {
	clearKeyEnv(t)

	statuses := CheckAPIKeys(&Config{})
	if len(statuses) != 1 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 1", len(statuses))
	}
	if statuses[0].IsSet || statuses[0].Source != KeySourceNone {
		t.Errorf("empty key: got %+v", statuses[0])
	}

	cfg := &Config{FRED: FREDConfig{APIKey: "config-key-value-long"}}
	s := CheckAPIKeys(cfg)[0]
	if s.Source != KeySourceConfig || s.Masked != "con...ong" {
		t.Errorf("config key: got %+v", s)
	}
	if !cfg.HasFREDKey() {
		t.Error("HasFREDKey should be true")
	}

	t.Setenv("FRED_API_KEY", "config-key-value-long")
	if s := CheckAPIKeys(cfg)[0]; s.Source != KeySourceEnv {
		t.Errorf("env key: got source %q, want %q", s.Source, KeySourceEnv)
	}
}
