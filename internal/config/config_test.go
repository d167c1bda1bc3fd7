package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "inkpost"
migrate_on_start = true
redis_host = "localhost"
redis_port = "6379"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
image_host_base_url = "https://api.imgbb.com"
upload_rate_limit_allowed_per_min = 10

[production]
host = "0.0.0.0"
port = 9000
log_level = "debug"
logs_path = "/var/log/inkpost/service.log"
sentry_enabled = true
postgres_host = "db"
postgres_port = "5432"
postgres_db_name = "inkpost"
redis_host = "redis"
redis_port = "6379"
prometheus_metrics_host = "0.0.0.0"
prometheus_metrics_port = "2112"
image_host_base_url = "https://api.imgbb.com"
upload_rate_limit_allowed_per_min = 5
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad_Development(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("development", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, "inkpost", cfg.PostgresDBName)
	assert.Equal(t, "https://api.imgbb.com", cfg.ImageHostBaseURL)
	assert.Equal(t, 10, cfg.UploadRateLimitAllowedPerMin)
}

func TestLoad_Production(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("prod", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.SentryEnabled)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, "/var/log/inkpost/service.log", cfg.LogsPath)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("staging", path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}
