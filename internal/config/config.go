package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Upstream   UpstreamConfig
	LocalState LocalStateConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Team       TeamConfig
	Feeds      FeedConfig
	Session    SessionConfig
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

// UpstreamConfig points at the CRM REST backend.
type UpstreamConfig struct {
	BaseURL            string
	TimeoutSeconds     int
	BreakerFailures    int
	BreakerOpenSeconds int
}

// LocalStateConfig selects the backend of the per-caller local-state store.
type LocalStateConfig struct {
	Driver string
	Secret string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how caller tokens are verified.
type AuthConfig struct {
	JWTSecret string
}

// TeamConfig tunes the team member directory.
type TeamConfig struct {
	RefetchDelay time.Duration
}

// FeedConfig holds polling intervals.
type FeedConfig struct {
	ConversationsInterval time.Duration
	ScheduledInterval     time.Duration
}

// SessionConfig bounds how long an idle caller session is kept.
type SessionConfig struct {
	IdleTTL time.Duration
}

// Local-state drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "crm-console"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Upstream: UpstreamConfig{
			BaseURL:            strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "http://localhost:8000"), "/"),
			TimeoutSeconds:     getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", 15),
			BreakerFailures:    getEnvAsInt("UPSTREAM_BREAKER_FAILURES", 5),
			BreakerOpenSeconds: getEnvAsInt("UPSTREAM_BREAKER_OPEN_SECONDS", 30),
		},
		LocalState: LocalStateConfig{
			Driver: strings.ToLower(getEnv("LOCAL_STATE_DRIVER", DriverMemory)),
			Secret: getEnv("LOCAL_STATE_SECRET", "dev-local-state-secret"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Team: TeamConfig{
			RefetchDelay: getEnvAsDuration("TEAM_REFETCH_DELAY_MS", time.Millisecond, 1000),
		},
		Feeds: FeedConfig{
			ConversationsInterval: getEnvAsDuration("FEED_CONVERSATIONS_INTERVAL_SECONDS", time.Second, 5),
			ScheduledInterval:     getEnvAsDuration("FEED_SCHEDULED_INTERVAL_SECONDS", time.Second, 30),
		},
		Session: SessionConfig{
			IdleTTL: getEnvAsDuration("SESSION_IDLE_TTL_MINUTES", time.Minute, 30),
		},
	}

	switch cfg.LocalState.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("LOCAL_STATE_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return nil, fmt.Errorf("invalid LOCAL_STATE_DRIVER %q", cfg.LocalState.Driver)
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

// Timeout returns the per-request timeout used by the upstream client.
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
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

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, unit time.Duration, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * unit
}
