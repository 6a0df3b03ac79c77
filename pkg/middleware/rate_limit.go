package middleware

import (
	"math"
	"net/http"
	"strconv"

	"tubegate/internal/model"
	"tubegate/internal/service"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware rejects clients that used up their sliding window
func RateLimitMiddleware(rateLimitService *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rateLimitService.Admit(ip) {
			if wait := rateLimitService.RetryAfter(ip); wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests. Please try again later.",
				Code:    http.StatusTooManyRequests,
			})
			return
		}

		// Set remaining requests header
		if remaining := rateLimitService.Remaining(ip); remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		c.Next()
	}
}
