package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"certledger/internal/ledger"
)

// Config is the process configuration read from the environment.
type Config struct {
	Addr         string
	DatabaseURL  string
	LogLevel     slog.Level
	ExpiryPolicy string
	JWT          JWTConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Stellar      StellarConfig
	Validation   ValidationConfig
	Stats        StatsConfig
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// RedisConfig configures the shared stats cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit stream. No brokers means log-only audit.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type StellarConfig struct {
	Network      string
	PublicURL    string
	TestnetURL   string
	IssuerSecret string
	Timeout      time.Duration
	BaseFee      int64
	AnchorAmount string
}

// ValidationConfig tunes the address validation cache and rate limiter.
type ValidationConfig struct {
	CacheTTL       time.Duration
	CacheMaxSize   int
	RateLimitRPS   float64
	RateLimitBurst int
}

type StatsConfig struct {
	CacheTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed numbers and durations are reported, not defaulted.
func FromEnv() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Addr:         e.str("CERTLEDGER_ADDR", ":8080"),
		DatabaseURL:  e.str("DATABASE_URL", ""),
		LogLevel:     e.level("LOG_LEVEL", slog.LevelInfo),
		ExpiryPolicy: strings.ToLower(e.str("CERT_EXPIRY_POLICY", "reject")),
		JWT: JWTConfig{
			SigningKey: e.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     e.str("JWT_ISSUER", "certledger"),
			Audience:   e.str("JWT_AUDIENCE", "certledger-api"),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    e.list("KAFKA_BROKERS"),
			AuditTopic: e.str("KAFKA_AUDIT_TOPIC", "certledger.audit"),
		},
		Stellar: StellarConfig{
			Network:      strings.ToLower(e.str("STELLAR_NETWORK", "test")),
			PublicURL:    e.str("STELLAR_HORIZON_PUBLIC_URL", "https://horizon.stellar.org"),
			TestnetURL:   e.str("STELLAR_HORIZON_TESTNET_URL", "https://horizon-testnet.stellar.org"),
			IssuerSecret: e.str("STELLAR_ISSUER_SECRET_KEY", ""),
			Timeout:      e.duration("STELLAR_TIMEOUT", 10*time.Second),
			BaseFee:      int64(e.integer("STELLAR_BASE_FEE", 100)),
			AnchorAmount: e.str("STELLAR_ANCHOR_AMOUNT", "0.0000001"),
		},
		Validation: ValidationConfig{
			CacheTTL:       time.Duration(e.integer("STELLAR_CACHE_TTL", 300000)) * time.Millisecond,
			CacheMaxSize:   e.integer("STELLAR_CACHE_MAX_SIZE", 1000),
			RateLimitRPS:   e.decimal("STELLAR_RATE_LIMIT_RPS", 10),
			RateLimitBurst: e.integer("STELLAR_RATE_LIMIT_BURST", 20),
		},
		Stats: StatsConfig{
			CacheTTL: e.duration("STATS_CACHE_TTL", 5*time.Minute),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Stellar.IssuerSecret == "" {
		errs = append(errs, errors.New("STELLAR_ISSUER_SECRET_KEY is required"))
	}
	if _, err := ledger.ParseNetwork(c.Stellar.Network); err != nil {
		errs = append(errs, fmt.Errorf("STELLAR_NETWORK: %w", err))
	}
	switch c.ExpiryPolicy {
	case "reject", "ignore":
	default:
		errs = append(errs, fmt.Errorf("CERT_EXPIRY_POLICY must be reject or ignore, got %q", c.ExpiryPolicy))
	}
	if c.Stellar.Timeout <= 0 {
		errs = append(errs, errors.New("STELLAR_TIMEOUT must be positive"))
	}
	if c.Validation.CacheTTL <= 0 {
		errs = append(errs, errors.New("STELLAR_CACHE_TTL must be positive"))
	}
	if c.Validation.CacheMaxSize <= 0 {
		errs = append(errs, errors.New("STELLAR_CACHE_MAX_SIZE must be positive"))
	}
	if c.Validation.RateLimitRPS <= 0 || c.Validation.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("STELLAR_RATE_LIMIT_RPS and STELLAR_RATE_LIMIT_BURST must be positive"))
	}
	if c.Stats.CacheTTL <= 0 {
		errs = append(errs, errors.New("STATS_CACHE_TTL must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) decimal(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) level(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return l
}

func (e *envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
