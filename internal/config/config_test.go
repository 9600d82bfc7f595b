package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": "s"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, 30, cfg.APIRateLimit)
	assert.Equal(t, time.Minute, cfg.APIRateWindow)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":              "s",
		"APP_PORT":                "9000",
		"RELAY_BACKEND":           "redis",
		"REDIS_ADDR":              "localhost:6379",
		"REDIS_DB":                "2",
		"LOG_JSON":                "true",
		"API_RATE_LIMIT":          "5",
		"API_RATE_WINDOW_SECONDS": "10",
		"TOKEN_TTL_HOURS":         "-1",
		"PUBLIC_URL":              "https://c4.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, 5, cfg.APIRateLimit)
	assert.Equal(t, 10*time.Second, cfg.APIRateWindow)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL, "non-positive values keep the default")
	assert.Equal(t, "https://c4.example", cfg.PublicURL)
}

func TestFromEnvErrors(t *testing.T) {
	cases := []map[string]string{
		{},
		{"JWT_SECRET": "s", "RELAY_BACKEND": "kafka"},
		{"JWT_SECRET": "s", "RELAY_BACKEND": "redis"},
		{"JWT_SECRET": "s", "RELAY_BACKEND": "postgres"},
	}
	for _, vals := range cases {
		_, err := FromEnv(env(vals))
		assert.Error(t, err, "%v", vals)
	}
}
