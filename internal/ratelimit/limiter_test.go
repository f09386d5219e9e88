package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func newMemoryLimiter(t *testing.T, rate string) *Limiter {
	t.Helper()
	l, err := New(config.RateLimitConfig{Enabled: true, Rate: rate}, memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "test"}))
	require.NoError(t, err)
	return l
}

func TestLimiterAllow(t *testing.T) {
	l := newMemoryLimiter(t, "2-M")
	ctx := context.Background()

	first, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, int64(2), first.Limit)
	assert.Equal(t, int64(1), first.Remaining)

	_, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)

	third, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, int64(0), third.Remaining)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLimiterEmptyKey(t *testing.T) {
	l := newMemoryLimiter(t, "2-M")
	_, err := l.Allow(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	assert.False(t, l.Enabled())
	res, err := l.Allow(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewRejectsMalformedRate(t *testing.T) {
	_, err := New(config.RateLimitConfig{Enabled: true, Rate: "lots"}, memory.NewStore())
	assert.Error(t, err)
}

func TestResultRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Zero(t, Result{Allowed: true}.RetryAfter(now))
	assert.Equal(t, time.Second, Result{ResetAt: now}.RetryAfter(now))
	assert.Equal(t, 30*time.Second, Result{ResetAt: now.Add(30 * time.Second)}.RetryAfter(now))
}
