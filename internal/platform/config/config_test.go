package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STELLAR_ISSUER_SECRET_KEY", "SSECRET")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "test", cfg.Stellar.Network)
	assert.Equal(t, 10*time.Second, cfg.Stellar.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Validation.CacheTTL)
	assert.Equal(t, 1000, cfg.Validation.CacheMaxSize)
	assert.Equal(t, float64(10), cfg.Validation.RateLimitRPS)
	assert.Equal(t, 20, cfg.Validation.RateLimitBurst)
	assert.Equal(t, "reject", cfg.ExpiryPolicy)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STELLAR_ISSUER_SECRET_KEY", "SSECRET")
	t.Setenv("STELLAR_NETWORK", "PUBLIC")
	t.Setenv("STELLAR_CACHE_TTL", "1500")
	t.Setenv("STELLAR_RATE_LIMIT_RPS", "2.5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CERT_EXPIRY_POLICY", "Ignore")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "public", cfg.Stellar.Network)
	assert.Equal(t, 1500*time.Millisecond, cfg.Validation.CacheTTL)
	assert.Equal(t, 2.5, cfg.Validation.RateLimitRPS)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "ignore", cfg.ExpiryPolicy)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvMalformed(t *testing.T) {
	t.Setenv("STELLAR_TIMEOUT", "ten seconds")
	t.Setenv("STELLAR_CACHE_MAX_SIZE", "lots")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STELLAR_TIMEOUT")
	assert.Contains(t, err.Error(), "STELLAR_CACHE_MAX_SIZE")
}

func TestValidate(t *testing.T) {
	t.Setenv("STELLAR_ISSUER_SECRET_KEY", "SSECRET")
	base := func() Config {
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	t.Run("issuer secret required", func(t *testing.T) {
		cfg := base()
		cfg.Stellar.IssuerSecret = ""
		assert.ErrorContains(t, cfg.Validate(), "STELLAR_ISSUER_SECRET_KEY")
	})
	t.Run("unknown network", func(t *testing.T) {
		cfg := base()
		cfg.Stellar.Network = "futurenet"
		assert.ErrorContains(t, cfg.Validate(), "STELLAR_NETWORK")
	})
	t.Run("network aliases accepted", func(t *testing.T) {
		for _, n := range []string{"public", "mainnet", "pubnet", "test", "testnet"} {
			cfg := base()
			cfg.Stellar.Network = n
			assert.NoError(t, cfg.Validate(), n)
		}
	})
	t.Run("unknown expiry policy", func(t *testing.T) {
		cfg := base()
		cfg.ExpiryPolicy = "warn"
		assert.ErrorContains(t, cfg.Validate(), "CERT_EXPIRY_POLICY")
	})
	t.Run("non-positive limits", func(t *testing.T) {
		cfg := base()
		cfg.Validation.RateLimitBurst = 0
		cfg.Validation.CacheTTL = 0
		err := cfg.Validate()
		assert.ErrorContains(t, err, "STELLAR_RATE_LIMIT")
		assert.ErrorContains(t, err, "STELLAR_CACHE_TTL")
	})
}
