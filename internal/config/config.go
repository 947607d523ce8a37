package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL   string        `yaml:"api_url"` // e.g. "http://localhost:8000"
	Timeout  time.Duration `yaml:"timeout"`
	Currency string        `yaml:"currency"`

	// Credentials for non-interactive CLI use. Env only.
	Email    string `yaml:"-"`
	Password string `yaml:"-"`

	CachePath   string `yaml:"cache_path"`   // "" disables the market-data cache
	JournalPath string `yaml:"journal_path"` // "" disables the activity journal

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// Dashboard
	DashboardHost string `yaml:"dashboard_host"`
	DashboardPort int    `yaml:"dashboard_port"`

	// Watchlist refresh schedule (cron spec)
	WatchlistPoll string `yaml:"watchlist_poll"`
}

// BaseURL returns the API root every request path is resolved against.
// e.g. "http://localhost:8000" -> "http://localhost:8000/api"
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/api"
}

// Load reads .env, then the optional YAML file at path, then applies
// environment overrides. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.APIURL = getEnvDefault("COINFOLIO_API_URL", cfg.APIURL)
	cfg.Timeout = getEnvDuration("COINFOLIO_TIMEOUT", cfg.Timeout)
	cfg.Currency = getEnvDefault("COINFOLIO_CURRENCY", cfg.Currency)
	cfg.Email = getEnvDefault("COINFOLIO_EMAIL", cfg.Email)
	cfg.Password = getEnvDefault("COINFOLIO_PASSWORD", cfg.Password)
	cfg.CachePath = getEnvDefault("COINFOLIO_CACHE_PATH", cfg.CachePath)
	cfg.JournalPath = getEnvDefault("COINFOLIO_JOURNAL_PATH", cfg.JournalPath)
	cfg.LogLevel = getEnvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnvBool("LOG_PRETTY", cfg.LogPretty)
	cfg.DashboardHost = getEnvDefault("DASHBOARD_HOST", cfg.DashboardHost)
	cfg.DashboardPort = getEnvInt("DASHBOARD_PORT", cfg.DashboardPort)
	cfg.WatchlistPoll = getEnvDefault("WATCHLIST_POLL", cfg.WatchlistPoll)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		APIURL:        "http://localhost:8000",
		Timeout:       10 * time.Second,
		Currency:      "USD",
		CachePath:     "./coinfolio-cache.db",
		JournalPath:   "./coinfolio-journal.jsonl",
		LogLevel:      "info",
		LogPretty:     true,
		DashboardHost: "localhost",
		DashboardPort: 8080,
		WatchlistPoll: "@every 5m",
	}
}

// HasCredentials reports whether both COINFOLIO_EMAIL and
// COINFOLIO_PASSWORD are set.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// Validate checks that required fields are usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("COINFOLIO_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("COINFOLIO_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.DashboardPort <= 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("DASHBOARD_PORT out of range: %d", c.DashboardPort)
	}
	if c.WatchlistPoll == "" {
		return fmt.Errorf("WATCHLIST_POLL is required")
	}
	return nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
