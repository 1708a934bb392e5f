package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/jobboard-api/internal/config"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

// RateLimiter is a process-wide token bucket shared by every caller.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			_ = c.Error(apperrors.TooManyRequests())
			c.Abort()
			return
		}
		c.Next()
	}
}
