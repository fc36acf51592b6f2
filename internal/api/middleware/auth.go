// Package middleware provides HTTP middleware for the Firekeeper agent API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AdminPasswordHeader carries the admin password for destructive storage routes.
const AdminPasswordHeader = "X-Admin-Password"

// ControllerTokenMiddleware returns a Gin middleware that requires the pre-shared
// controller token as a bearer token.
func ControllerTokenMiddleware(token string, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "token_middleware").Logger()
	expected := []byte(token)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Debug().Str("path", c.Request.URL.Path).Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		presented := ExtractBearerToken(authHeader)
		if presented == "" {
			log.Debug().Str("path", c.Request.URL.Path).Msg("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			log.Warn().Str("path", c.Request.URL.Path).Str("client_ip", c.ClientIP()).Msg("invalid controller token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>" value,
// or "" if the value has another form.
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AdminCredential checks admin passwords against a plaintext value or a bcrypt hash.
// The hash wins when both are set.
type AdminCredential struct {
	Password string
	Hash     string
}

// Configured returns true if any admin credential is set.
func (a AdminCredential) Configured() bool {
	return a.Password != "" || a.Hash != ""
}

// Verify reports whether presented matches the configured credential.
func (a AdminCredential) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	if a.Hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(presented)) == nil
	}
	if a.Password != "" {
		return subtle.ConstantTimeCompare([]byte(presented), []byte(a.Password)) == 1
	}
	return false
}

// AdminPasswordMiddleware returns a Gin middleware that requires the admin password
// header. Must run after ControllerTokenMiddleware. When no credential is configured
// every request is refused.
func AdminPasswordMiddleware(cred AdminCredential, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "admin_middleware").Logger()

	return func(c *gin.Context) {
		if !cred.Configured() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin operations are not enabled on this agent"})
			return
		}

		if !cred.Verify(c.GetHeader(AdminPasswordHeader)) {
			log.Warn().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("admin password rejected")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin password"})
			return
		}

		c.Next()
	}
}
