package middleware

import (
	"github.com/gin-gonic/gin"
)

// cspAPI is a strict Content-Security-Policy; the agent only ever returns JSON or
// Prometheus text.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets security-related HTTP response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", cspAPI)
		c.Header("Cache-Control", "no-store")

		// HSTS only when TLS terminates here or at the platform front end.
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
