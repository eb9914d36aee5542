package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API and the logistics runner.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Logistics    LogisticsConfig
	Routing      RoutingConfig
	Notification NotificationConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values and the event fan-out channel.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
}

// AuthConfig defines operator token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// LogisticsConfig drives the cycle scheduler.
type LogisticsConfig struct {
	IntervalSeconds     int
	ErrorBackoffSeconds int
	LockPath            string
}

// RoutingConfig holds engine presentation and calendar settings. Capacity
// limits are not here: they are read from the store on every admission.
type RoutingConfig struct {
	GhostWindowMinutes int
	TagTimezone        string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "routing-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
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
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("EVENTS_REDIS_CHANNEL", "routing:events"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Logistics: LogisticsConfig{
			IntervalSeconds:     getEnvAsInt("LOGISTICS_INTERVAL_SECONDS", 15),
			ErrorBackoffSeconds: getEnvAsInt("LOGISTICS_ERROR_BACKOFF_SECONDS", 5),
			LockPath:            getEnv("LOGISTICS_LOCK_PATH", filepath.Join(os.TempDir(), "routing-logistics.lock")),
		},
		Routing: RoutingConfig{
			GhostWindowMinutes: getEnvAsInt("ROUTING_GHOST_WINDOW_MINUTES", 5),
			TagTimezone:        getEnv("ROUTING_TAG_TIMEZONE", "UTC"),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if _, err := cfg.Routing.Location(); err != nil {
		return nil, err
	}
	if cfg.Logistics.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid LOGISTICS_INTERVAL_SECONDS: %d", cfg.Logistics.IntervalSeconds)
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

// Interval returns the scheduler cadence.
func (l LogisticsConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSeconds) * time.Second
}

// ErrorBackoff returns the wait after a failed cycle, never longer than the interval.
func (l LogisticsConfig) ErrorBackoff() time.Duration {
	backoff := time.Duration(l.ErrorBackoffSeconds) * time.Second
	if backoff <= 0 || backoff > l.Interval() {
		return l.Interval()
	}
	return backoff
}

// GhostWindow returns the hub overlay interval.
func (r RoutingConfig) GhostWindow() time.Duration {
	return time.Duration(r.GhostWindowMinutes) * time.Minute
}

// Location resolves the zone that decides a tag's calendar date.
func (r RoutingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.TagTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ROUTING_TAG_TIMEZONE %q: %w", r.TagTimezone, err)
	}
	return loc, nil
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
