package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/auth-service/internal/constants"
	"github.com/taskhub/auth-service/pkg/logger"
	"github.com/taskhub/auth-service/pkg/redis"
	"go.uber.org/zap"
)

// memoryLimiter is the per-process fallback when Redis is disabled. It only
// protects a single process; the Redis counter is the shared one.
type memoryLimiter struct {
	tokens     map[string][]time.Time
	maxRequest int
	duration   time.Duration
	mu         sync.Mutex
}

func newMemoryLimiter(maxRequest int, duration time.Duration) *memoryLimiter {
	return &memoryLimiter{
		tokens:     make(map[string][]time.Time),
		maxRequest: maxRequest,
		duration:   duration,
	}
}

func (rl *memoryLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanup(now)

	tokens := rl.tokens[ip]
	if len(tokens) >= rl.maxRequest {
		return false
	}

	rl.tokens[ip] = append(tokens, now)
	return true
}

func (rl *memoryLimiter) cleanup(now time.Time) {
	for ip, tokens := range rl.tokens {
		var valid []time.Time
		for _, t := range tokens {
			if now.Sub(t) <= rl.duration {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			rl.tokens[ip] = valid
		} else {
			delete(rl.tokens, ip)
		}
	}
}

// RateLimit limits requests per client IP. With Redis enabled the counter is
// shared across processes; otherwise it degrades to the in-memory window.
func RateLimit(redisClient *redis.Client, maxRequest int, duration time.Duration) gin.HandlerFunc {
	limiter := newMemoryLimiter(maxRequest, duration)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		allowed := true
		if redisClient.IsEnabled() {
			key := constants.RateLimitKeyPrefix + ip
			count, err := redisClient.IncrWithTTL(c.Request.Context(), key, duration)
			if err != nil {
				// Redis outage must not take auth down with it
				logger.GetLogger().Warn("Rate limit counter unavailable, falling back to in-memory",
					zap.String("client_ip", ip),
					zap.Error(err))
				allowed = limiter.allow(ip, now)
			} else {
				allowed = count <= int64(maxRequest)
			}
		} else {
			allowed = limiter.allow(ip, now)
		}

		if !allowed {
			logger.GetLogger().Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("max_requests", maxRequest),
				zap.Duration("duration", duration),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(duration.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				constants.BuildErrorResponse("rate limit exceeded"))
			return
		}

		c.Next()
	}
}
