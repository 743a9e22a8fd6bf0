package middleware

import (
	"net/http"
	"sync"
	"time"

	"studyforum/internal/apperr"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// UserRateLimiter 按用户限流，用于 AI 接口。限流表用 LRU 控制内存
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter allows perMinute requests per user with a burst of the same size.
func NewUserRateLimiter(perMinute, tableSize int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if tableSize <= 0 {
		tableSize = 10000
	}
	table, _ := lru.New[string, *rate.Limiter](tableSize)
	return &UserRateLimiter{
		limiters: table,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *UserRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware keys by signed-in user, falling back to client IP.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = user.ID
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": apperr.RateLimited().Message})
			return
		}
		c.Next()
	}
}
