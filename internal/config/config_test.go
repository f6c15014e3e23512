package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "DATABASE_URL", "PG_DSN", "HTTP_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT",
		"SHUTDOWN_TIMEOUT", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
		"LOG_LEVEL", "LOG_FORMAT", "AUTH_JWT_SECRET", "JWT_SECRET", "TIMEZONE", "AUTO_MIGRATE",
	} {
		t.Setenv(key, "")
	}
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	cfg, err := Read("")
	require.NoError(t, err)
	assert.EqualError(t, cfg.Validate(), "config: DATABASE_URL or PG_DSN is required")
}

func TestRead_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_DSN", "postgres://localhost/registry")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("TIMEZONE", "Europe/Paris")

	cfg, err := Read("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://localhost/registry", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5, cfg.DB.MaxIdleConns)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.True(t, cfg.AutoMigrate)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestRead_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://yaml/registry
http:
  addr: ":7070"
  read_timeout: 3s
log:
  level: debug
  format: console
`), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://yaml/registry", cfg.DatabaseURL)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate_UnknownTimezone(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/registry"
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}

func TestRead_SkipsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Error(t, cfg.Validate())
}
