package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MirseoDB/mirseodb/internal/ratelimit"
)

// =============================================================================
// REQUEST ID MIDDLEWARE
// =============================================================================

// RequestIDMiddleware stamps a UUID onto every request for log
// correlation. The ID is echoed back in the X-Request-ID header.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

// BearerTokenMiddleware returns middleware that checks the Authorization
// header against the MIRSEODB_API_TOKEN value. Health and time probes are
// exempt, and /query is deferred to its handler, which also accepts the
// token in the request body's auth_token field. No-op if token is empty.
func BearerTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if path == "/health" || path == "/time" || path == "/query" {
			c.Next()
			return
		}

		if HeaderTokenMatches(c.GetHeader("Authorization"), token) {
			c.Next()
			return
		}

		UnauthorizedError(c, "Invalid or missing API token")
		c.Abort()
	}
}

// HeaderTokenMatches reports whether an Authorization header carries the
// expected bearer token.
func HeaderTokenMatches(authHeader, token string) bool {
	if authHeader == "" {
		return false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	return len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == token
}

// =============================================================================
// RATE LIMIT MIDDLEWARE
// =============================================================================

// routeCategory maps request paths to rate limiter route categories
func routeCategory(path string) string {
	if path == "/query" {
		return ratelimit.QueryRoute
	}
	return ""
}

// RateLimitMiddleware returns middleware that rate-limits requests using
// the provided limiter
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		category := routeCategory(c.Request.URL.Path)
		if category == "" {
			category = "default"
		}

		result := limiter.Allow(category)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			TooManyRequestsError(c, fmt.Sprintf("Rate limit exceeded for %s. Retry after %d seconds.", result.LimitType, retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// =============================================================================
// BODY SIZE MIDDLEWARE
// =============================================================================

// MaxBodySizeMiddleware returns middleware that limits request body size
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			PayloadTooLargeError(c, fmt.Sprintf("Request body too large. Maximum: %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// =============================================================================
// VALIDATION CONSTANTS
// =============================================================================

const (
	MaxSQLLength     = 100 * 1024 // 100KB
	DefaultBodyLimit = 1 * 1024 * 1024
)
