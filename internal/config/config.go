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
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Session  SessionConfig
	Kafka    KafkaConfig
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

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SessionConfig bounds live-session behavior.
type SessionConfig struct {
	ConnectTimeoutSeconds    int
	SessionSlotTTLSeconds    int
	SuggestionDebounceMS     int
	SuggestionMinNewWords    int
	SuggestionWindowWords    int
	SuggestionMaxRetained    int
	ReconcileIntervalSeconds int
}

// KafkaConfig holds optional event-export settings. Empty brokers disable export.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-orchestrator"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Session: SessionConfig{
			ConnectTimeoutSeconds:    getEnvAsInt("SESSION_CONNECT_TIMEOUT_SECONDS", 30),
			SessionSlotTTLSeconds:    getEnvAsInt("SESSION_SLOT_TTL_SECONDS", 120),
			SuggestionDebounceMS:     getEnvAsInt("SUGGESTION_DEBOUNCE_MS", 2000),
			SuggestionMinNewWords:    getEnvAsInt("SUGGESTION_MIN_NEW_WORDS", 10),
			SuggestionWindowWords:    getEnvAsInt("SUGGESTION_WINDOW_WORDS", 50),
			SuggestionMaxRetained:    getEnvAsInt("SUGGESTION_MAX_RETAINED", 5),
			ReconcileIntervalSeconds: getEnvAsInt("QUEUE_RECONCILE_INTERVAL_SECONDS", 300),
		},
		Kafka: KafkaConfig{
			Brokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "support-events"),
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

// ConnectTimeout returns the bound on call connection and device registration.
func (s SessionConfig) ConnectTimeout() time.Duration {
	if s.ConnectTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

// SuggestionDebounce returns the feeder coalescing delay.
func (s SessionConfig) SuggestionDebounce() time.Duration {
	if s.SuggestionDebounceMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.SuggestionDebounceMS) * time.Millisecond
}

// SlotTTL returns the live-session slot expiry.
func (s SessionConfig) SlotTTL() time.Duration {
	if s.SessionSlotTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.SessionSlotTTLSeconds) * time.Second
}

// ReconcileInterval returns the queue reconciliation sweep period.
func (s SessionConfig) ReconcileInterval() time.Duration {
	if s.ReconcileIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.ReconcileIntervalSeconds) * time.Second
}

func parseBrokers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
