package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// unsetEnv clears a variable for the test and restores it afterwards.
func unsetEnv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Integration.Interval)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "msync.yaml", `
database:
  driver: postgres
  dsn: postgres://msync@localhost/msync?sslmode=disable
integration:
  site_id: site-7
  interval: 1m
  batch_size: 500
lock:
  backend: redis
  redis_addr: localhost:6379
audit:
  kafka_brokers: [kafka-1:9092, kafka-2:9092]
metrics:
  addr: ":9090"
log:
  level: debug
  pretty: true
`)

	cfg, err := load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "site-7", cfg.Integration.SiteID)
	assert.Equal(t, time.Minute, cfg.Integration.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Integration.MaxBackoff, "unset fields keep their default")
	assert.Equal(t, 500, cfg.Integration.BatchSize)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, "msync.integration", cfg.Audit.KafkaTopic)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "msync.yaml", "integration:\n  site_id: from-file\n")
	t.Setenv("MSYNC_SITE_ID", "from-env")
	t.Setenv("MSYNC_BATCH_SIZE", "25")
	t.Setenv("MSYNC_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("MSYNC_LOG_LEVEL", "WARN")
	t.Setenv("MSYNC_LOG_PRETTY", "true")

	cfg, err := load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Integration.SiteID)
	assert.Equal(t, 25, cfg.Integration.BatchSize)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_DotEnv(t *testing.T) {
	unsetEnv(t, "MSYNC_DATABASE_DSN")
	t.Setenv("MSYNC_SITE_ID", "already-set")
	envFile := writeFile(t, ".env", "MSYNC_DATABASE_DSN=/var/lib/msync/sync.db\nMSYNC_SITE_ID=from-dotenv\n")

	cfg, err := load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/msync/sync.db", cfg.Database.DSN)
	assert.Equal(t, "already-set", cfg.Integration.SiteID, "the environment wins over .env")
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	_, err := load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad yaml",
			yaml:    "database: [",
			wantErr: "parse config",
		},
		{
			name:    "unknown driver",
			yaml:    "database:\n  driver: mysql\n",
			wantErr: "Database.Driver",
		},
		{
			name:    "redis without address",
			yaml:    "lock:\n  backend: redis\n",
			wantErr: "Lock.RedisAddr",
		},
		{
			name:    "backoff below interval",
			yaml:    "integration:\n  interval: 10m\n  max_backoff: 1m\n",
			wantErr: "Integration.MaxBackoff",
		},
		{
			name:    "bad metrics address",
			yaml:    "metrics:\n  addr: not an address\n",
			wantErr: "Metrics.Addr",
		},
		{
			name:    "bad duration env",
			env:     map[string]string{"MSYNC_INTERVAL": "soon"},
			wantErr: "MSYNC_INTERVAL",
		},
		{
			name:    "bad int env",
			env:     map[string]string{"MSYNC_REDIS_DB": "zero"},
			wantErr: "MSYNC_REDIS_DB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "msync.yaml", tt.yaml)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load(path, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = ""
	cfg.Log.Level = "trace"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Database.DSN")
	assert.Contains(t, err.Error(), "Log.Level")
}
