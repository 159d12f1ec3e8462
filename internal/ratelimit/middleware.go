package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opennirman/nirmanwatch/internal/monitoring"
)

// IPRateLimitMiddleware applies the per-minute IP rate limit to every request
func IPRateLimitMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := limiter.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitIPBlock()
			}
			slog.Warn("IP rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per minute", result.Limit),
				"retry_after": int(result.RetryAfter.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// SubmissionRateLimitMiddleware applies the stricter limit to endpoints
// that create complaints, ratings or issue reports.
func SubmissionRateLimitMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		ip := c.ClientIP()

		result, err := limiter.AllowSubmission(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Submission rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitEndpoint(c.Request.URL.Path)
			}
			slog.Warn("Submission rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many submissions. Limit: %d per minute", result.Limit),
				"retry_after": int(result.RetryAfter.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware applies a custom per-endpoint limit keyed by IP
func EndpointRateLimitMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics, limit int, period time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := fmt.Sprintf("ratelimit:endpoint:%s:%s", c.Request.URL.Path, ip)

		result, err := limiter.allow(c.Request.Context(), key, limit, period)
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "ip", ip, "path", c.Request.URL.Path, "error", err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitEndpoint(c.Request.URL.Path)
			}
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests to this endpoint. Limit: %d per %s", limit, period),
				"retry_after": int(result.RetryAfter.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
