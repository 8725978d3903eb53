package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OAuth         OAuthConfig
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
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds redis configuration for the revocation fast path
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// JWTConfig holds token issuance configuration
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// OAuthConfig holds identity-provider configuration. The URL overrides
// default to the real provider endpoints; they exist so tests and
// air-gapped environments can point at their own servers.
type OAuthConfig struct {
	GoogleClientID      string
	GoogleClientSecret  string
	GitHubClientID      string
	GitHubClientSecret  string
	RedirectURL         string
	VerifyGoogleIDToken bool

	GoogleUserInfoURL string
	GitHubAuthURL     string
	GitHubTokenURL    string
	GitHubAPIBaseURL  string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("BUGRELAY_HOST", "0.0.0.0"),
			Port:            getEnv("BUGRELAY_PORT", "8080"),
			ReadTimeout:     getEnvDuration("BUGRELAY_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("BUGRELAY_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("BUGRELAY_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("BUGRELAY_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:          getEnv("BUGRELAY_DATABASE_URL", "postgres://localhost/bugrelay?sslmode=disable"),
			MaxOpenConns: getEnvInt("BUGRELAY_DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("BUGRELAY_DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      getEnv("BUGRELAY_REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("BUGRELAY_REDIS_PASSWORD", ""),
			DB:       getEnvInt("BUGRELAY_REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:          getEnv("BUGRELAY_JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("BUGRELAY_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("BUGRELAY_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		OAuth: OAuthConfig{
			GoogleClientID:      getEnv("BUGRELAY_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret:  getEnv("BUGRELAY_GOOGLE_CLIENT_SECRET", ""),
			GitHubClientID:      getEnv("BUGRELAY_GITHUB_CLIENT_ID", ""),
			GitHubClientSecret:  getEnv("BUGRELAY_GITHUB_CLIENT_SECRET", ""),
			RedirectURL:         getEnv("BUGRELAY_OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/oauth/callback"),
			VerifyGoogleIDToken: getEnvBool("BUGRELAY_VERIFY_GOOGLE_ID_TOKEN", false),
			GoogleUserInfoURL:   getEnv("BUGRELAY_GOOGLE_USERINFO_URL", ""),
			GitHubAuthURL:       getEnv("BUGRELAY_GITHUB_AUTH_URL", ""),
			GitHubTokenURL:      getEnv("BUGRELAY_GITHUB_TOKEN_URL", ""),
			GitHubAPIBaseURL:    getEnv("BUGRELAY_GITHUB_API_BASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLevel(getEnv("BUGRELAY_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("BUGRELAY_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for fatal misconfiguration. An unusable
// signing secret is a startup error, never a request-time one.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("BUGRELAY_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("BUGRELAY_JWT_SECRET must be at least 32 bytes, got %d", len(c.JWT.Secret))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive, got %s", c.JWT.AccessTokenTTL)
	}
	if c.JWT.RefreshTokenTTL <= c.JWT.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL (%s) must exceed access token TTL (%s)",
			c.JWT.RefreshTokenTTL, c.JWT.AccessTokenTTL)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("BUGRELAY_DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
