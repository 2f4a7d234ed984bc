// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Postgres      storage.PostgresConfig
	Redis         storage.RedisConfig
	Auth          AuthConfig
	Cache         CacheConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds session verification configuration
type AuthConfig struct {
	// JWTSecret signs and verifies session tokens (HMAC)
	JWTSecret string
	// SessionTTL bounds token lifetime accepted at verification
	SessionTTL time.Duration
}

// CacheConfig holds permission cache configuration
type CacheConfig struct {
	// TTL for cached permission sets in the cache store. Short enough that a
	// demotion is corrected within seconds even if version comparison is
	// skipped, long enough to keep the registry out of the hot path.
	TTL time.Duration
	// L1Size bounds the in-process permission set cache
	L1Size int
}

// AuditConfig holds audit recorder configuration
type AuditConfig struct {
	QueueSize      int
	MaxRetries     int
	RetryBackoff   time.Duration
	EnqueueTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Postgres:      loadPostgresConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Cache:         loadCacheConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WFM_HOST", "0.0.0.0"),
		Port:            getEnv("WFM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WFM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WFM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WFM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WFM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WFM_HEALTH_PORT", "9090"),
	}
}

func loadPostgresConfig() storage.PostgresConfig {
	cfg := storage.DefaultPostgresConfig()
	cfg.URL = getEnv("WFM_POSTGRES_URL", "")
	if maxConns := getEnvInt("WFM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("WFM_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("WFM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

func loadRedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        getEnv("WFM_REDIS_URL", "redis://localhost:6379"),
		Password:   getEnv("WFM_REDIS_PASSWORD", ""),
		DB:         getEnvInt("WFM_REDIS_DB", -1),
		MaxRetries: getEnvInt("WFM_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("WFM_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:  getEnv("WFM_JWT_SECRET", ""),
		SessionTTL: getEnvDuration("WFM_SESSION_TTL", 12*time.Hour),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:    getEnvDuration("WFM_PERMISSION_CACHE_TTL", 30*time.Second),
		L1Size: getEnvInt("WFM_PERMISSION_CACHE_L1_SIZE", 1024),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		QueueSize:      getEnvInt("WFM_AUDIT_QUEUE_SIZE", 1024),
		MaxRetries:     getEnvInt("WFM_AUDIT_MAX_RETRIES", 3),
		RetryBackoff:   getEnvDuration("WFM_AUDIT_RETRY_BACKOFF", 250*time.Millisecond),
		EnqueueTimeout: getEnvDuration("WFM_AUDIT_ENQUEUE_TIMEOUT", 50*time.Millisecond),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("WFM_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("WFM_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("permission cache TTL must be positive")
	}
	if c.Cache.L1Size <= 0 {
		return fmt.Errorf("permission cache L1 size must be positive")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit queue size must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
