package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string

	DataSource         string // "csv" or "sqlite"
	DataCSVPath        string
	DataSQLitePath     string
	DataWatch          bool
	DataReloadSchedule string
	DataReloadTimeout  time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "none", "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout         time.Duration
	ShutdownInFlightTimeout time.Duration
	ShutdownCheckInterval   time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	ChartWidth  int
	ChartHeight int
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Data struct {
		Source         string `yaml:"source"`
		CSVPath        string `yaml:"csv_path"`
		SQLitePath     string `yaml:"sqlite_path"`
		Watch          *bool  `yaml:"watch"`
		ReloadSchedule string `yaml:"reload_schedule"`
		ReloadTimeout  string `yaml:"reload_timeout"`
	} `yaml:"data"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
		CheckInterval   string `yaml:"check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Charts struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"charts"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and applies
// env overrides (DATA_SOURCE, DATA_CSV_PATH, CACHE_BACKEND, MEMCACHED_ADDRS).
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.DataSource = envOr("DATA_SOURCE", strings.ToLower(fc.Data.Source))
	if cfg.DataSource == "" {
		cfg.DataSource = "csv"
	}
	cfg.DataCSVPath = envOr("DATA_CSV_PATH", fc.Data.CSVPath)
	if cfg.DataCSVPath == "" {
		cfg.DataCSVPath = "data/bike_sharing.csv"
	}
	cfg.DataSQLitePath = strings.TrimSpace(fc.Data.SQLitePath)
	if cfg.DataSQLitePath == "" {
		cfg.DataSQLitePath = "data/bike_sharing.db"
	}
	cfg.DataWatch = fc.Data.Watch != nil && *fc.Data.Watch
	cfg.DataReloadSchedule = strings.TrimSpace(fc.Data.ReloadSchedule)
	cfg.DataReloadTimeout = parseDuration(fc.Data.ReloadTimeout, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheBackend = envOr("CACHE_BACKEND", fc.Cache.Backend)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "none"
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownCheckInterval = parseDuration(fc.Shutdown.CheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.ChartWidth = fc.Charts.Width
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = 640
	}
	cfg.ChartHeight = fc.Charts.Height
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = 400
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fileVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fileVal)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// The in-flight drain must finish inside the overall shutdown budget; it is
// clamped rather than rejected.
func validate(cfg *Config) error {
	switch cfg.DataSource {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("data.source must be csv or sqlite, got %q", cfg.DataSource)
	}
	if cfg.DataWatch && cfg.DataSource != "csv" {
		return fmt.Errorf("data.watch requires data.source csv")
	}
	switch cfg.CacheBackend {
	case "none", "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be none, in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.OverloadThresholdPct > 100 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle percentages must be <= 100")
	}
	if cfg.ShutdownInFlightTimeout > cfg.ShutdownTimeout {
		cfg.ShutdownInFlightTimeout = cfg.ShutdownTimeout
	}
	return nil
}
