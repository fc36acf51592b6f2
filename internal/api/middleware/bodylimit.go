package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes bounds request bodies; every agent request is a small JSON object.
const DefaultMaxBodyBytes = 64 << 10

// BodyLimitMiddleware returns a Gin middleware that limits the size of request bodies.
// Requests declaring a larger Content-Length are refused with 413 up front; others
// fail while the handler reads past maxBytes.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
