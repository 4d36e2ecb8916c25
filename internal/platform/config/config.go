package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig captures Redis connection settings for the claim rate limiter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the single immutable configuration object for the service.
// Everything that used to be an implicit env read lives here; components
// receive the values they need at construction time and never consult the
// environment themselves.
type Server struct {
	Addr    string
	BaseURL string

	DatabaseURL string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey     string
	AdminEmail        string
	AdminPasswordHash string

	// FixtureMode wires in-memory stores for local development and demos.
	FixtureMode bool

	ClaimTokenTTL time.Duration
	// ClaimRatePerMinute caps claim-consumption attempts per client IP to
	// blunt token enumeration.
	ClaimRatePerMinute int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("HEARTH_ADDR", ":8080"),
		BaseURL:            envOr("HEARTH_BASE_URL", "http://localhost:8080"),
		DatabaseURL:        os.Getenv("HEARTH_DATABASE_URL"),
		AuditTopic:         envOr("HEARTH_AUDIT_TOPIC", "hearth.audit"),
		AdminEmail:         os.Getenv("HEARTH_ADMIN_EMAIL"),
		AdminPasswordHash:  os.Getenv("HEARTH_ADMIN_PASSWORD_HASH"),
		FixtureMode:        os.Getenv("HEARTH_FIXTURE_MODE") == "true",
		ClaimTokenTTL:      envDurationOr("HEARTH_CLAIM_TOKEN_TTL", 14*24*time.Hour),
		ClaimRatePerMinute: envIntOr("HEARTH_CLAIM_RATE_PER_MINUTE", 10),
		Redis: RedisConfig{
			URL:          os.Getenv("HEARTH_REDIS_URL"),
			PoolSize:     envIntOr("HEARTH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("HEARTH_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("HEARTH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("HEARTH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("HEARTH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if brokers := os.Getenv("HEARTH_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.JWTSigningKey = os.Getenv("HEARTH_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
