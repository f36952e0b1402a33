package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MaxConcurrent = 10
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Site.Environment = "staging" }},
		{"trusted proxy not an address", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }},
		{"static prefix without slashes", func(c *Config) { c.Site.StaticPrefix = "static" }},
		{"empty pages dir", func(c *Config) { c.Site.PagesDir = "" }},
		{"max batch records must be > 0", func(c *Config) { c.RUM.MaxBatchRecords = 0 }},
		{"retention must be > 0", func(c *Config) { c.RUM.Retention = 0 }},
		{"pong timeout must exceed ping", func(c *Config) { c.Alerts.PongTimeout = c.Alerts.PingInterval }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }},
		{"auth enabled without secret", func(c *Config) { c.Auth.Enabled = true }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"tracing sample rate above 1", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 1.5
		}},
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"ws connections per minute must be > 0", func(c *Config) { c.RateLimiting.WebSocket.ConnectionsPerMinute = 0 }},
		{"ws max concurrent must be >= 0", func(c *Config) { c.RateLimiting.WebSocket.MaxConcurrent = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RUM.MaxBatchRecords != 100 {
		t.Fatalf("expected default max batch records 100, got %d", cfg.RUM.MaxBatchRecords)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  address: ":9000"
site:
  environment: production
  static_export: false
rum:
  max_batch_records: 25
  summary_cache_ttl: 5s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FINSITE_STATIC_EXPORT", "true")
	t.Setenv("FINSITE_LOG_LEVEL", "debug")
	t.Setenv("FINSITE_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if !cfg.IsProduction() {
		t.Errorf("expected production environment")
	}
	if !cfg.Site.StaticExport {
		t.Errorf("expected env to enable static export")
	}
	if cfg.RUM.MaxBatchRecords != 25 {
		t.Errorf("max batch records = %d", cfg.RUM.MaxBatchRecords)
	}
	if cfg.RUM.SummaryCacheTTL != 5*time.Second {
		t.Errorf("summary cache ttl = %v", cfg.RUM.SummaryCacheTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if got := cfg.Server.TrustedProxies; len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.0.2.1" {
		t.Errorf("trusted proxies = %v", got)
	}
	// untouched sections keep defaults
	if cfg.Site.StaticPrefix != "/static/" {
		t.Errorf("static prefix = %q", cfg.Site.StaticPrefix)
	}
}

func TestLoad_InvalidEnvBool(t *testing.T) {
	t.Setenv("FINSITE_STATIC_EXPORT", "maybe")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for invalid FINSITE_STATIC_EXPORT")
	}
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected yaml error")
	}
}
