package main

import (
	"testing"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "REDIS_URL", "CTGOV_BASE_URL", "CTGOV_MAX_RETRIES", "CTGOV_RETRY_DELAY",
		"CTGOV_TIMEOUT", "CTGOV_MAX_PAGES", "DATASET_TTL", "LOG_LEVEL", "LOG_PRETTY", "USER_AGENT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.DatasetTTL)
	assert.Equal(t, client.DefaultConfig(), cfg.Client)
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CTGOV_BASE_URL", "http://localhost:1234/api/v2")
	t.Setenv("CTGOV_MAX_RETRIES", "3")
	t.Setenv("CTGOV_RETRY_DELAY", "250ms")
	t.Setenv("CTGOV_TIMEOUT", "30s")
	t.Setenv("CTGOV_MAX_PAGES", "20")
	t.Setenv("DATASET_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:1234/api/v2", cfg.Client.BaseURL)
	assert.Equal(t, 3, cfg.Client.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 20, cfg.Client.MaxPages)
	assert.Equal(t, time.Hour, cfg.DatasetTTL)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CTGOV_MAX_RETRIES", "many")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "invalid CTGOV_MAX_RETRIES")

	t.Setenv("CTGOV_MAX_RETRIES", "")
	t.Setenv("CTGOV_RETRY_DELAY", "5")
	_, err = loadConfig()
	assert.ErrorContains(t, err, "invalid CTGOV_RETRY_DELAY")
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("localhost:6380")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)

	opts, err = redisOptions("redis://:secret@cache:6379/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
