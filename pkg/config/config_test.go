package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("BARTETL_DATA_DIR", "/var/lib/bartetl")

	cfg := DefaultConfig()

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAPIKey, cfg.API.APIKey)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "/var/lib/bartetl/etl_checkpoint.json", cfg.Scheduler.CheckpointPath)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/bartetl/bart.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 30*24*time.Hour, cfg.Storage.Retention)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BARTETL_API_KEY", "env-key")
	t.Setenv("BARTETL_INTERVAL", "5m")
	t.Setenv("BARTETL_STORAGE_BACKEND", "postgres")
	t.Setenv("BARTETL_POSTGRES_DSN", "postgres://localhost/bart")
	t.Setenv("BARTETL_STATION_REFRESH_HOUR", "3")
	t.Setenv("BARTETL_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("BARTETL_LOG_LEVEL", "debug")
	t.Setenv("BARTETL_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-key", cfg.API.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/bart", cfg.Storage.PostgresDSN)
	assert.Equal(t, 3, cfg.Scheduler.StationRefreshHour)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("BARTETL_INTERVAL", "soon")
	t.Setenv("BARTETL_MAX_ATTEMPTS", "three")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BARTETL_INTERVAL")
	assert.Contains(t, err.Error(), "BARTETL_MAX_ATTEMPTS")
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
}

func TestDatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fallback/bart")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "postgres://fallback/bart", cfg.Storage.PostgresDSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "bigquery" },
			wantErr: "storage.backend must be one of",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Storage.Backend = "postgres"
				c.Storage.PostgresDSN = ""
			},
			wantErr: "storage.postgres_dsn is required",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Scheduler.Interval = 0 },
			wantErr: "scheduler.interval",
		},
		{
			name:    "refresh hour out of range",
			mutate:  func(c *Config) { c.Scheduler.StationRefreshHour = 24 },
			wantErr: "scheduler.station_refresh_hour",
		},
		{
			name:    "bad base url",
			mutate:  func(c *Config) { c.API.BaseURL = "not a url" },
			wantErr: "api.base_url must be a valid URL",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *Config) { c.Retry.MaxDelay = time.Millisecond },
			wantErr: "retry.max_delay",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:   "log level is case-insensitive",
			mutate: func(c *Config) { c.Logging.Level = "WARN" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"api-key":    "flag-key",
		"interval":   30 * time.Second,
		"storage":    "postgres",
		"checkpoint": "/tmp/cp.json",
		"log-level":  "error",
		"addr":       "",
	})

	assert.Equal(t, "flag-key", cfg.API.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/cp.json", cfg.Scheduler.CheckpointPath)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr, "empty flag must not override")
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.API.APIKey = "file-key"
	cfg.Scheduler.Interval = 2 * time.Minute
	cfg.Storage.Retention = 72 * time.Hour
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, "file-key", loaded.API.APIKey)
	assert.Equal(t, 2*time.Minute, loaded.Scheduler.Interval)
	assert.Equal(t, 72*time.Hour, loaded.Storage.Retention)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  api_key: file-key
scheduler:
  interval: 2m
logging:
  level: warn
`), 0600))

	t.Setenv("BARTETL_INTERVAL", "3m")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.API.APIKey)
	assert.Equal(t, 3*time.Minute, cfg.Scheduler.Interval, "env overrides file")
	assert.Equal(t, "debug", cfg.Logging.Level, "flags override file")
}

func TestLoadFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: mongo\n"), 0600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.PostgresDSN = "postgres://user:secret@db/bart"

	red := cfg.Redacted()

	assert.Equal(t, "MW9S...VV8V", red.API.APIKey)
	assert.NotContains(t, red.Storage.PostgresDSN, "secret")
	assert.Equal(t, DefaultAPIKey, cfg.API.APIKey, "original untouched")
	assert.Equal(t, "********", Mask("short"))
}
