// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// AppName is shown in page titles.
	AppName string

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Log holds optional rotating log file settings.
	Log LogConfig

	// TagAPI holds settings for the remote tag REST API.
	TagAPI TagAPIConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Query holds query cache tuning.
	Query QueryConfig

	// Views holds live view and search settings.
	Views ViewConfig

	// RateLimit holds write-route throttling settings.
	RateLimit RateLimitConfig

	// MetricsEnabled exposes Prometheus metrics at /metrics.
	MetricsEnabled bool

	// CORSAllowedOrigins lists origins allowed to call the JSON API.
	CORSAllowedOrigins []string

	// TrustedProxies lists CIDRs whose forwarding headers are believed.
	TrustedProxies []string
}

// LogConfig controls the rotating log file. An empty File disables it and
// logs go to stdout only.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// TagAPIConfig holds settings for the upstream tag API.
type TagAPIConfig struct {
	// URL is the API base, e.g. "http://localhost:3333".
	URL string

	// Timeout bounds each upstream request.
	Timeout time.Duration

	// PageSize is the number of tags requested per page.
	PageSize int
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	// Empty keeps the query cache in-process only.
	URL string

	// Prefix namespaces every key and channel Tagdeck writes.
	Prefix string
}

// Enabled reports whether a shared Redis cache is configured.
func (r RedisConfig) Enabled() bool { return r.URL != "" }

// QueryConfig tunes the query cache.
type QueryConfig struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Retry     int
}

// ViewConfig holds live view settings.
type ViewConfig struct {
	// SearchDebounce is how long typing must pause before the filter applies.
	SearchDebounce time.Duration

	// IdleTimeout is how long a view without a connected stream is kept.
	IdleTimeout time.Duration

	// Heartbeat is the SSE keepalive interval.
	Heartbeat time.Duration

	// RestoreFilter seeds the search box from the URL's title parameter.
	RestoreFilter bool
}

// RateLimitConfig throttles write routes per client IP.
type RateLimitConfig struct {
	// CreatePerSecond is the sustained rate of create requests.
	CreatePerSecond float64

	// CreateBurst is how many creates may arrive at once.
	CreateBurst int
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if a setting is unusable.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		AppName:  getEnv("APP_NAME", "Tagdeck"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},

		TagAPI: TagAPIConfig{
			URL:      getEnv("TAG_API_URL", "http://localhost:3333"),
			Timeout:  getEnvDuration("TAG_API_TIMEOUT", 10*time.Second),
			PageSize: getEnvInt("TAGS_PAGE_SIZE", 10),
		},

		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", ""),
			Prefix: getEnv("CACHE_PREFIX", "tagdeck"),
		},

		Query: QueryConfig{
			StaleTime: getEnvDuration("QUERY_STALE_TIME", 5*time.Second),
			GCTime:    getEnvDuration("QUERY_GC_TIME", 5*time.Minute),
			Retry:     getEnvInt("QUERY_RETRY", 3),
		},

		Views: ViewConfig{
			SearchDebounce: getEnvDuration("SEARCH_DEBOUNCE", time.Second),
			IdleTimeout:    getEnvDuration("VIEW_IDLE_TIMEOUT", 2*time.Minute),
			Heartbeat:      getEnvDuration("SSE_HEARTBEAT", 30*time.Second),
			RestoreFilter:  getEnvBool("URL_RESTORE_FILTER", true),
		},

		RateLimit: RateLimitConfig{
			CreatePerSecond: getEnvFloat("CREATE_RATE_LIMIT", 1),
			CreateBurst:     getEnvInt("CREATE_RATE_BURST", 5),
		},

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{
			"127.0.0.0/8",    // Localhost
			"10.0.0.0/8",     // Docker default bridge
			"172.16.0.0/12",  // Docker bridge (alternate range)
			"192.168.0.0/16", // Common LAN
			"fd00::/8",       // IPv6 private
		}),
	}

	u, err := url.Parse(cfg.TagAPI.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("TAG_API_URL must be an absolute http(s) URL, got %q", cfg.TagAPI.URL)
	}
	if cfg.TagAPI.PageSize < 1 {
		return nil, fmt.Errorf("TAGS_PAGE_SIZE must be positive, got %d", cfg.TagAPI.PageSize)
	}
	if cfg.Query.Retry < 0 {
		cfg.Query.Retry = 0
	}
	if cfg.Views.SearchDebounce < 0 {
		cfg.Views.SearchDebounce = 0
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvFloat reads a float env var or returns the default.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var ("true", "1", "false", "0", ...) or
// returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default. Empty
// items are dropped.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
