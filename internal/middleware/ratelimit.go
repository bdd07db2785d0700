package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// InboundRateLimit shields the gateway itself with a per-client token
// bucket. This is a plain fail-fast limit on the HTTP edge; the exchange
// request budget is paced separately inside the execution pipeline.
func InboundRateLimit(qps float64, burst int) gin.HandlerFunc {
	if qps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(qps), burst)
			limiters[key] = l
		}
		return l
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderGatewayKey)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiterFor(key).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
