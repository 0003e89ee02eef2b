// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nadmax/failscope/internal/query"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	defaultPort            = "8080"
	defaultRedisAddr       = "localhost:6379"
	defaultLookBackDays    = 14
	defaultRefreshInterval = 5 * time.Minute
)

type Config struct {
	Port         string
	LogLevel     string
	LogFormat    string
	StoreBackend string
	RedisAddr    string
	PostgresDSN  string

	QueryAPIURL   string
	QueryAPIUser  string
	QueryAPIKey   string
	QueryRetryMax int
	QueryTimeout  time.Duration

	DefaultLookBackDays int
	Projects            []string
	RefreshInterval     time.Duration
	WorkerID            string

	EmailAPIKey string
	FromName    string
	FromAddress string
	DigestTo    []string
	LinkBaseURL string
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	cfg := Config{
		Port:                getenvDefault("PORT", defaultPort),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		StoreBackend:        strings.ToLower(getenvDefault("STORE_BACKEND", BackendRedis)),
		RedisAddr:           getenvDefault("REDIS_ADDR", defaultRedisAddr),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		QueryAPIURL:         strings.TrimRight(os.Getenv("QUERY_API_URL"), "/"),
		QueryAPIUser:        os.Getenv("QUERY_API_USER"),
		QueryAPIKey:         os.Getenv("QUERY_API_KEY"),
		QueryRetryMax:       getenvIntDefault("QUERY_RETRY_MAX", 0),
		DefaultLookBackDays: getenvIntDefault("DEFAULT_LOOKBACK_DAYS", defaultLookBackDays),
		Projects:            splitList(os.Getenv("PROJECTS")),
		RefreshInterval:     defaultRefreshInterval,
		WorkerID:            os.Getenv("WORKER_ID"),
		EmailAPIKey:         os.Getenv("EMAIL_API_KEY"),
		FromName:            os.Getenv("FROM_NAME"),
		FromAddress:         os.Getenv("FROM_ADDRESS"),
		DigestTo:            splitList(os.Getenv("DIGEST_TO")),
		LinkBaseURL:         strings.TrimRight(os.Getenv("LINK_BASE_URL"), "/"),
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid REFRESH_INTERVAL %q", v)
		}
		cfg.RefreshInterval = d
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid QUERY_TIMEOUT %q", v)
		}
		cfg.QueryTimeout = d
	}

	switch cfg.StoreBackend {
	case BackendRedis:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return cfg, errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return cfg, fmt.Errorf("unsupported STORE_BACKEND %q (expected redis or postgres)", cfg.StoreBackend)
	}

	if cfg.DefaultLookBackDays <= 0 {
		return cfg, fmt.Errorf("DEFAULT_LOOKBACK_DAYS must be positive, got %d", cfg.DefaultLookBackDays)
	}

	return cfg, nil
}

// QueryOptions describes the remote task query service. BaseURL is empty when
// QUERY_API_URL is unset.
func (c Config) QueryOptions() query.HTTPOptions {
	return query.HTTPOptions{
		BaseURL:  c.QueryAPIURL,
		User:     c.QueryAPIUser,
		APIKey:   c.QueryAPIKey,
		RetryMax: c.QueryRetryMax,
		Timeout:  c.QueryTimeout,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
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

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
