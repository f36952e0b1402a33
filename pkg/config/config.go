package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// IPs or CIDRs whose X-Forwarded-For is believed. Empty trusts no
		// proxy and keys clients by socket address.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Site struct {
		Environment  string `yaml:"environment"`    // development or production
		StaticExport bool   `yaml:"static_export"`  // no server-side API available
		PagesDir     string `yaml:"pages_dir"`
		StaticDir    string `yaml:"static_dir"`
		StaticPrefix string `yaml:"static_prefix"`
	} `yaml:"site"`

	Security struct {
		ScriptSources  []string `yaml:"script_sources"`
		StyleSources   []string `yaml:"style_sources"`
		ConnectSources []string `yaml:"connect_sources"`
		ImageSources   []string `yaml:"image_sources"`
		HSTSMaxAge     int      `yaml:"hsts_max_age"`
	} `yaml:"security"`

	RUM struct {
		MaxBatchRecords int           `yaml:"max_batch_records"`
		MaxBodyBytes    int64         `yaml:"max_body_bytes"`
		SummaryCacheTTL time.Duration `yaml:"summary_cache_ttl"`
		Retention       time.Duration `yaml:"retention"`
		MemoryMaxItems  int           `yaml:"memory_max_items"`
		WriteBatchSize  int           `yaml:"write_batch_size"`
		WriteFlushEvery time.Duration `yaml:"write_flush_interval"`
	} `yaml:"rum"`

	Alerts struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		MaxClients   int           `yaml:"max_clients"`
	} `yaml:"alerts"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		FilePath   string `yaml:"file_path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	CircuitBreaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		SuccessThreshold int           `yaml:"success_threshold"`
		Timeout          time.Duration `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Backup struct {
		Enabled        bool          `yaml:"enabled"`
		Dir            string        `yaml:"dir"`
		Interval       time.Duration `yaml:"interval"`
		Keep           time.Duration `yaml:"keep"`
		ArchiveExpired bool          `yaml:"archive_expired"` // snapshot RUM data before retention prunes it
	} `yaml:"backup"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
			MaxConcurrent        int `yaml:"max_concurrent_connections"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// IsProduction reports whether the site runs with production headers.
func (c *Config) IsProduction() bool {
	return c.Site.Environment == EnvProduction
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	for _, p := range c.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", p)
			}
		}
	}

	// Site
	if c.Site.Environment != EnvDevelopment && c.Site.Environment != EnvProduction {
		return fmt.Errorf("site.environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if !strings.HasPrefix(c.Site.StaticPrefix, "/") || !strings.HasSuffix(c.Site.StaticPrefix, "/") {
		return fmt.Errorf("site.static_prefix must start and end with /")
	}
	if c.Site.PagesDir == "" {
		return fmt.Errorf("site.pages_dir must not be empty")
	}

	// Security
	if c.Security.HSTSMaxAge < 0 {
		return fmt.Errorf("security.hsts_max_age must be >= 0")
	}

	// RUM
	if c.RUM.MaxBatchRecords <= 0 {
		return fmt.Errorf("rum.max_batch_records must be > 0")
	}
	if c.RUM.MaxBodyBytes <= 0 {
		return fmt.Errorf("rum.max_body_bytes must be > 0")
	}
	if c.RUM.SummaryCacheTTL < 0 {
		return fmt.Errorf("rum.summary_cache_ttl must be >= 0")
	}
	if c.RUM.Retention <= 0 {
		return fmt.Errorf("rum.retention must be > 0")
	}
	if c.RUM.MemoryMaxItems <= 0 {
		return fmt.Errorf("rum.memory_max_items must be > 0")
	}
	if c.RUM.WriteBatchSize <= 0 {
		return fmt.Errorf("rum.write_batch_size must be > 0")
	}
	if c.RUM.WriteFlushEvery <= 0 {
		return fmt.Errorf("rum.write_flush_interval must be > 0")
	}

	// Alerts
	if c.Alerts.PingInterval <= 0 {
		return fmt.Errorf("alerts.ping_interval must be > 0")
	}
	if c.Alerts.PongTimeout <= c.Alerts.PingInterval {
		return fmt.Errorf("alerts.pong_timeout must be > alerts.ping_interval")
	}
	if c.Alerts.MaxClients < 0 {
		return fmt.Errorf("alerts.max_clients must be >= 0")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.MetricsPath == "" {
		return fmt.Errorf("monitoring.metrics_path must not be empty when prometheus_enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path must not be empty when logging.output=%s", c.Logging.Output)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Circuit breaker
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be > 0")
	}
	if c.CircuitBreaker.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.success_threshold must be > 0")
	}
	if c.CircuitBreaker.Timeout <= 0 {
		return fmt.Errorf("circuit_breaker.timeout must be > 0")
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0 when auth.enabled=true")
		}
	}

	// Backup
	if c.Backup.Enabled {
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup.dir must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
		}
		if c.Backup.Keep < 0 {
			return fmt.Errorf("backup.keep must be >= 0")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 20 * time.Second

	cfg.Site.Environment = EnvDevelopment
	cfg.Site.StaticExport = false
	cfg.Site.PagesDir = "web/pages"
	cfg.Site.StaticDir = "web/static"
	cfg.Site.StaticPrefix = "/static/"

	cfg.Security.HSTSMaxAge = 63072000 // two years

	cfg.RUM.MaxBatchRecords = 100
	cfg.RUM.MaxBodyBytes = 1 << 20
	cfg.RUM.SummaryCacheTTL = 30 * time.Second
	cfg.RUM.Retention = 30 * 24 * time.Hour
	cfg.RUM.MemoryMaxItems = 50000
	cfg.RUM.WriteBatchSize = 50
	cfg.RUM.WriteFlushEvery = time.Second

	cfg.Alerts.PingInterval = 30 * time.Second
	cfg.Alerts.PongTimeout = 60 * time.Second
	cfg.Alerts.MaxClients = 100

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 14

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.CircuitBreaker.FailureThreshold = 5
	cfg.CircuitBreaker.SuccessThreshold = 2
	cfg.CircuitBreaker.Timeout = 30 * time.Second

	cfg.Auth.Enabled = false
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Backup.Enabled = false
	cfg.Backup.Dir = "data/backups"
	cfg.Backup.Interval = 24 * time.Hour
	cfg.Backup.Keep = 30 * 24 * time.Hour
	cfg.Backup.ArchiveExpired = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "finsite"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 30
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("FINSITE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if v := os.Getenv("FINSITE_TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Server.TrustedProxies = append(c.Server.TrustedProxies, p)
			}
		}
	}
	if env := os.Getenv("FINSITE_ENV"); env != "" {
		c.Site.Environment = env
	}
	if v := os.Getenv("FINSITE_STATIC_EXPORT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FINSITE_STATIC_EXPORT: %w", err)
		}
		c.Site.StaticExport = b
	}
	if dir := os.Getenv("FINSITE_PAGES_DIR"); dir != "" {
		c.Site.PagesDir = dir
	}
	if level := os.Getenv("FINSITE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("FINSITE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
	if pw := os.Getenv("FINSITE_REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if secret := os.Getenv("FINSITE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	return nil
}
