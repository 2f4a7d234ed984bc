package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WFM_POSTGRES_URL", "postgres://localhost/wfm?sslmode=disable")
	t.Setenv("WFM_JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 1024, cfg.Cache.L1Size)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, -1, cfg.Redis.DB)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("WFM_POSTGRES_URL", "postgres://localhost/wfm?sslmode=disable")
	t.Setenv("WFM_JWT_SECRET", "test-secret")
	t.Setenv("WFM_PORT", "8181")
	t.Setenv("WFM_PERMISSION_CACHE_TTL", "90s")
	t.Setenv("WFM_AUDIT_QUEUE_SIZE", "4096")
	t.Setenv("WFM_LOG_LEVEL", "debug")
	t.Setenv("WFM_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 4096, cfg.Audit.QueueSize)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
			Postgres: loadPostgresConfig(),
			Auth:     AuthConfig{JWTSecret: "secret"},
			Cache:    CacheConfig{TTL: 30 * time.Second, L1Size: 64},
			Audit:    AuditConfig{QueueSize: 128},
		}
	}

	t.Run("missing postgres URL", func(t *testing.T) {
		cfg := base()
		cfg.Postgres.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "postgres URL")
	})

	t.Run("missing JWT secret", func(t *testing.T) {
		cfg := base()
		cfg.Postgres.URL = "postgres://localhost/wfm"
		cfg.Auth.JWTSecret = ""
		assert.ErrorContains(t, cfg.Validate(), "JWT secret")
	})

	t.Run("port collision", func(t *testing.T) {
		cfg := base()
		cfg.Postgres.URL = "postgres://localhost/wfm"
		cfg.Server.HealthPort = cfg.Server.Port
		assert.ErrorContains(t, cfg.Validate(), "must be different")
	})

	t.Run("non-positive cache TTL", func(t *testing.T) {
		cfg := base()
		cfg.Postgres.URL = "postgres://localhost/wfm"
		cfg.Cache.TTL = 0
		assert.ErrorContains(t, cfg.Validate(), "cache TTL")
	})
}
