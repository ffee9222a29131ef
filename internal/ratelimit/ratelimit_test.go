package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newLimiter(t *testing.T, clk clock.Clock, rate float64, burst int) *AuthLimiter {
	t.Helper()
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, AuthRate: rate, AuthBurst: burst}}
	limiter, err := NewAuthLimiter(newClient(t), cfg, clk, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, limiter.Enabled())
	return limiter
}

func TestAuthLimiterExhaustsBurst(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	limiter := newLimiter(t, clk, 0.5, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)

	res, err = limiter.Allow(ctx, "login", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "buckets are per client")

	res, err = limiter.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "buckets are per endpoint")
}

func TestAuthLimiterRefills(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	limiter := newLimiter(t, clk, 1, 1)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "verify", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	clk.Advance(500 * time.Millisecond)
	res, err = limiter.Allow(ctx, "verify", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)

	clk.Advance(time.Second)
	res, err = limiter.Allow(ctx, "verify", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAuthLimiterDisabled(t *testing.T) {
	log := zaptest.NewLogger(t)
	limiter, err := NewAuthLimiter(nil, config.Config{RateLimit: config.RateLimitConfig{Enabled: true, AuthRate: 1, AuthBurst: 1}}, nil, log)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = NewAuthLimiter(newClient(t), config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, nil, log)
	assert.Error(t, err)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	bucket := NewTokenBucket(newClient(t), nil)
	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, errBucketInput)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, errBucketInput)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.ErrorIs(t, err, errBucketInput)
	assert.Nil(t, NewTokenBucket(nil, nil))
}
