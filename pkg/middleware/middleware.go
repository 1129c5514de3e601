package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIKeyAuth validates the request against the configured key list.
// With no keys configured the API is open; intended for local runs.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(validKeys) == 0 {
			c.Next()
			return
		}

		apiKey := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		for _, validKey := range validKeys {
			if apiKey == validKey {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid API key",
		})
		c.Abort()
	}
}

// RateLimit implements per-client token bucket rate limiting.
func RateLimit(requestsPerMinute int) gin.HandlerFunc {
	type clientLimiter struct {
		tokens     int
		lastRefill time.Time
	}

	limiters := make(map[string]*clientLimiter)
	var mu sync.Mutex

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		mu.Lock()
		limiter, exists := limiters[clientIP]
		if !exists {
			limiter = &clientLimiter{
				tokens:     requestsPerMinute,
				lastRefill: time.Now(),
			}
			limiters[clientIP] = limiter
		}

		now := time.Now()
		refill := int(now.Sub(limiter.lastRefill).Minutes() * float64(requestsPerMinute))
		if refill > 0 {
			limiter.tokens = min(limiter.tokens+refill, requestsPerMinute)
			limiter.lastRefill = now
		}

		if limiter.tokens <= 0 {
			mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		limiter.tokens--
		mu.Unlock()

		c.Next()
	}
}

// CORS middleware for the dashboard frontend.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Logging routes gin request logs through logrus.
func Logging() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logrus.WithFields(logrus.Fields{
			"method":    param.Method,
			"path":      param.Path,
			"status":    param.StatusCode,
			"latency":   param.Latency,
			"client_ip": param.ClientIP,
		}).Info("HTTP Request")

		return ""
	})
}
