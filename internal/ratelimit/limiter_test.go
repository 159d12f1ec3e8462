package ratelimit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennirman/nirmanwatch/internal/monitoring"
)

func newFallbackLimiter(config Config) *RateLimiter {
	redisClient := &RedisClient{enabled: false}
	return NewRateLimiter(redisClient, config, monitoring.NewMetrics())
}

func TestRateLimiterFallbackBlocksAfterBurst(t *testing.T) {
	config := Config{
		IPLimitPerMin:     5,
		SubmitLimitPerMin: 2,
		BurstMultiplier:   1,
	}
	limiter := newFallbackLimiter(config)

	ctx := context.Background()
	ip := "203.0.113.7"

	allowedCount := 0
	for i := 0; i < 20; i++ {
		result, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
		if result.Allowed {
			allowedCount++
		}
	}

	assert.GreaterOrEqual(t, allowedCount, 5, "should allow at least the configured limit")
	assert.Less(t, allowedCount, 20, "should block once the bucket is drained")
}

func TestRateLimiterSubmissionStricterThanIP(t *testing.T) {
	config := Config{
		IPLimitPerMin:     60,
		SubmitLimitPerMin: 3,
		BurstMultiplier:   1,
	}
	limiter := newFallbackLimiter(config)

	ctx := context.Background()
	ip := "198.51.100.4"

	submitAllowed := 0
	for i := 0; i < 20; i++ {
		result, err := limiter.AllowSubmission(ctx, ip)
		require.NoError(t, err)
		if result.Allowed {
			submitAllowed++
		}
	}

	// Submission bucket is much smaller than the IP bucket
	assert.Less(t, submitAllowed, 20)

	result, err := limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "IP limit should be independent of submission limit")
}

func TestRateLimiterIndependentKeys(t *testing.T) {
	config := Config{
		IPLimitPerMin:     3,
		SubmitLimitPerMin: 3,
		BurstMultiplier:   1,
	}
	limiter := newFallbackLimiter(config)

	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		result, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "first request for %s should be allowed", ip)
	}
}

func TestRateLimiterResultFields(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	result, err := limiter.AllowIP(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, DefaultConfig().IPLimitPerMin, result.Limit)
	assert.False(t, result.ResetAt.IsZero())
}

func TestRateLimiterStats(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = limiter.AllowIP(ctx, "192.0.2.50")
	}

	stats := limiter.GetStats()
	require.NotNil(t, stats)
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 1, stats["fallback_limiters"].(int))
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	ctx := context.Background()
	done := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func(n int) {
			ip := fmt.Sprintf("172.16.0.%d", n)
			for j := 0; j < 10; j++ {
				_, err := limiter.AllowIP(ctx, ip)
				assert.NoError(t, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 50; i++ {
		<-done
	}
}

func TestRateLimiterCancelledContextFallback(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fallback mode does not touch Redis, so a cancelled context is fine
	result, err := limiter.AllowIP(ctx, "192.0.2.99")
	require.NoError(t, err)
	assert.NotNil(t, result)
}
