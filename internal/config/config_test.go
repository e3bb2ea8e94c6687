package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points CONFIG_PATH at an empty temp dir so a stray config.yaml in
// the package directory can't leak into tests.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ".", cfg.AppRoot)
	assert.Empty(t, cfg.ModelPath)
	assert.Equal(t, 1000, cfg.ModelCacheSize)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, "data/sessions", cfg.SessionPath)
	assert.Equal(t, 336*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "sessionid", cfg.SessionCookieName)
	assert.False(t, cfg.SessionCookieSecure)
	assert.Equal(t, 10*time.Minute, cfg.SessionCleanupInterval)
	assert.Equal(t, 0, cfg.RateLimitRequests, "rate limiting is opt-in")
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "temperature-conversions", cfg.KafkaTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, 1024, cfg.EventBufferSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("APP_ROOT", "/srv/app")
	t.Setenv("MODEL_PATH", "models/v2.json")
	t.Setenv("MODEL_CACHE_SIZE", "0")
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("SESSION_PATH", "/var/lib/tempconv")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("SESSION_COOKIE_NAME", "tc_session")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_REQUESTS", "30")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("EVENT_BUFFER_SIZE", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/srv/app", cfg.AppRoot)
	assert.Equal(t, "models/v2.json", cfg.ModelPath)
	assert.Equal(t, 0, cfg.ModelCacheSize)
	assert.Equal(t, "sqlite", cfg.SessionStore)
	assert.Equal(t, "/var/lib/tempconv", cfg.SessionPath)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "tc_session", cfg.SessionCookieName)
	assert.True(t, cfg.SessionCookieSecure)
	assert.Equal(t, time.Minute, cfg.SessionCleanupInterval)
	assert.Equal(t, 30, cfg.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 16, cfg.EventBufferSize)
}

func TestLoad_EmptyEnvKeepsDefault(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_KafkaEnabledOverride(t *testing.T) {
	t.Run("explicit false with brokers", func(t *testing.T) {
		isolate(t)
		t.Setenv("KAFKA_BROKERS", "broker:9092")
		t.Setenv("KAFKA_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.KafkaEnabled)
	})

	t.Run("explicit true without brokers", func(t *testing.T) {
		isolate(t)
		t.Setenv("KAFKA_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KAFKA_BROKERS")
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7070"
session_store: badger
kafka_brokers:
  - "a:9092"
  - "b:9092"
batch_size: 10
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("BATCH_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, "badger", cfg.SessionStore)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, 20, cfg.BatchSize, "environment overrides the file")
}

func TestLoad_DefaultConfigFileInWorkingDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: warn\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_PATH")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{env: "SHUTDOWN_TIMEOUT", value: "-1s"},
		{env: "SHUTDOWN_TIMEOUT", value: "not-a-duration"},
		{env: "LOG_LEVEL", value: "verbose"},
		{env: "LOG_FORMAT", value: "xml"},
		{env: "SESSION_STORE", value: "redis"},
		{env: "SESSION_TTL", value: "0s"},
		{env: "MODEL_CACHE_SIZE", value: "-5"},
		{env: "RATE_LIMIT_REQUESTS", value: "-1"},
		{env: "BATCH_SIZE", value: "0"},
		{env: "BATCH_SIZE", value: "1001"},
		{env: "BATCH_SIZE", value: "abc"},
		{env: "EVENT_BUFFER_SIZE", value: "0"},
		{env: "BATCH_FLUSH_INTERVAL", value: "-500ms"},
	}

	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			require.Error(t, err)
			if tt.value != "not-a-duration" && tt.value != "abc" {
				assert.Contains(t, err.Error(), tt.env)
			}
		})
	}
}

func TestLoad_SessionPathRequiredForPersistentStores(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_store: sqlite\nsession_path: \"\"\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_PATH")
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogLevel = "loud"
	cfg.BatchSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "invalid BATCH_SIZE: must be 1-1000")
}
