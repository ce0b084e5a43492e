package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// SessionBackend selects where session state (magic links, refresh whitelist,
// access blacklist) lives.
type SessionBackend string

const (
	SessionBackendMemory SessionBackend = "memory"
	SessionBackendRedis  SessionBackend = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Session   SessionConfig
	Redis     RedisConfig
	Directory DirectoryConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token signing parameters. Magic-link lifetime (15m) and
// refresh lifetime (7d) are fixed by the session contract and intentionally
// not configurable here.
type AuthConfig struct {
	JWTSecret           string
	AccessTokenTTLHours int
}

// CacheConfig tunes the directory read cache.
type CacheConfig struct {
	TTLMinutes             int
	CleanupIntervalMinutes int
}

// SessionConfig selects the session state backend.
type SessionConfig struct {
	Backend SessionBackend
}

// RedisConfig holds Redis connection values for the redis session backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DirectoryConfig points at the external booking directory.
type DirectoryConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// MailConfig holds the magic-link mail settings.
type MailConfig struct {
	ResendAPIKey string
	From         string
	LinkBaseURL  string
}

// RateLimitConfig throttles the auth endpoints per client IP.
// RequestsPerMinute <= 0 disables the limiter.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := SessionBackend(getEnv("SESSION_BACKEND", string(SessionBackendMemory)))
	switch backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("invalid SESSION_BACKEND: %q", backend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "rental-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLHours: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_HOURS", 24),
		},
		Cache: CacheConfig{
			TTLMinutes:             getEnvAsInt("CACHE_TTL_MINUTES", 5),
			CleanupIntervalMinutes: getEnvAsInt("CACHE_CLEANUP_INTERVAL_MINUTES", 10),
		},
		Session: SessionConfig{
			Backend: backend,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Directory: DirectoryConfig{
			BaseURL:        getEnv("DIRECTORY_BASE_URL", "http://127.0.0.1:9090"),
			APIKey:         os.Getenv("DIRECTORY_API_KEY"),
			TimeoutSeconds: getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", 10),
		},
		Mail: MailConfig{
			ResendAPIKey: os.Getenv("MAIL_RESEND_API_KEY"),
			From:         getEnv("MAIL_FROM", "noreply@example.com"),
			LinkBaseURL:  getEnv("MAIL_LINK_BASE_URL", "http://localhost:3000"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the configured access-token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.AccessTokenTTLHours) * time.Hour
}

// TTL returns the default cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CleanupInterval returns the cache sweep period.
func (c CacheConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// Timeout returns the directory call timeout.
func (d DirectoryConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
