package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/connvault/connvault/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// loginLimiter bounds authentication attempts per client within a fixed
// one-minute window.
type loginLimiter interface {
	allow(ctx context.Context, key string) bool
}

// newLoginLimiter picks the redis-backed limiter when an address is
// configured, sharing the window across instances; otherwise the window is
// tracked in process.
func newLoginLimiter(cfg config.RateLimitConfig) loginLimiter {
	limit := cfg.LoginPerMinute
	if limit <= 0 {
		limit = 10
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &redisLimiter{client: client, limit: limit}
	}
	return &memoryLimiter{limit: limit, seen: map[string]*window{}}
}

type redisLimiter struct {
	client *redis.Client
	limit  int
}

func (l *redisLimiter) allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("ratelimit:login:%s", key)
	count, errIncr := l.client.Incr(ctx, redisKey).Result()
	if errIncr != nil {
		// Limiting is best effort; an unreachable redis must not lock
		// everyone out.
		log.Warnf("rate limiter unavailable: %v", errIncr)
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, redisKey, time.Minute)
	}
	return count <= int64(l.limit)
}

type window struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	limit int

	mu   sync.Mutex
	seen map[string]*window
}

func (l *memoryLimiter) allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.seen[key]
	if !ok || now.After(w.resetAt) {
		l.seen[key] = &window{count: 1, resetAt: now.Add(time.Minute)}
		return true
	}
	w.count++
	return w.count <= l.limit
}

// loginRateLimitMiddleware rejects clients that exceed the login window.
func loginRateLimitMiddleware(limiter loginLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, slow down"})
			return
		}
		c.Next()
	}
}
