package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HOLIDAYS", "2026-12-25, ,2027-01-01")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.BookingTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 365, cfg.HorizonDays)
	assert.Equal(t, "local", cfg.PaymentProvider)
	assert.Equal(t, []string{"2026-12-25", "2027-01-01"}, cfg.Holidays)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoadReportsEveryProblem(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("BOOKING_TTL", "ten minutes")
	t.Setenv("SWEEP_BATCH", "lots")
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("PAYMENT_API_KEY", "")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{
		"JWT_SECRET", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME",
		"BOOKING_TTL", "SWEEP_BATCH", "PAYMENT_API_KEY", "PAYMENT_WEBHOOK_SECRET",
	} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	client := NewRedisClient(context.Background())
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, NewRedisClient(context.Background()))
}
