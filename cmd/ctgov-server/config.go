package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// config is the server configuration read from the environment.
type config struct {
	Port       string
	RedisURL   string
	DatasetTTL time.Duration
	Client     client.Config
	Logging    logging.Config
}

// loadConfig reads the environment on top of the package defaults.
func loadConfig() (config, error) {
	cfg := config{
		Port:     getEnv("PORT", "8080"),
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		Client:   client.DefaultConfig(),
		Logging:  logging.ConfigFromEnv(),
	}

	cfg.Client.BaseURL = getEnv("CTGOV_BASE_URL", cfg.Client.BaseURL)
	cfg.Client.UserAgent = getEnv("USER_AGENT", cfg.Client.UserAgent)

	var err error
	if cfg.Client.MaxRetries, err = getEnvInt("CTGOV_MAX_RETRIES", cfg.Client.MaxRetries); err != nil {
		return config{}, err
	}
	if cfg.Client.MaxPages, err = getEnvInt("CTGOV_MAX_PAGES", cfg.Client.MaxPages); err != nil {
		return config{}, err
	}
	if cfg.Client.RetryDelay, err = getEnvDuration("CTGOV_RETRY_DELAY", cfg.Client.RetryDelay); err != nil {
		return config{}, err
	}
	if cfg.Client.Timeout, err = getEnvDuration("CTGOV_TIMEOUT", cfg.Client.Timeout); err != nil {
		return config{}, err
	}
	if cfg.DatasetTTL, err = getEnvDuration("DATASET_TTL", 24*time.Hour); err != nil {
		return config{}, err
	}

	return cfg, nil
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(redisURL string) (*redis.Options, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		return redis.ParseURL(redisURL)
	}
	return &redis.Options{Addr: redisURL}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
