package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OperationIDKey is the gin context key handlers use to expose the backup
// operation a request created or polled.
const OperationIDKey = "operation_id"

// SetOperationID records the operation a request is about so the request log
// line carries it.
func SetOperationID(c *gin.Context, id string) {
	if id != "" {
		c.Set(OperationIDKey, id)
	}
}

// backupKindForRoute returns the backup kind served by a route, or "" for
// routes that do not run backups.
func backupKindForRoute(route string) models.BackupKind {
	switch {
	case route == "/users":
		return models.BackupKindIdentities
	case route == "/firestore" || strings.HasPrefix(route, "/firestore/"):
		return models.BackupKindDocuments
	}
	return ""
}

// sensitiveParams lists query parameter names whose values must be redacted from logs.
// operationId is kept on purpose so document export polls stay traceable.
var sensitiveParams = map[string]bool{
	"token":        true,
	"access_token": true,
	"key":          true,
	"secret":       true,
	"password":     true,
}

// redactQueryString replaces values of known sensitive query parameters with [REDACTED].
func redactQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[UNPARSEABLE]"
	}

	redacted := false
	for name, values := range params {
		if sensitiveParams[strings.ToLower(name)] {
			for i := range values {
				values[i] = "[REDACTED]"
			}
			redacted = true
		}
	}

	if !redacted {
		return rawQuery
	}
	return params.Encode()
}

// RequestLogger returns a middleware that logs HTTP requests using zerolog.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQueryString(c.Request.URL.RawQuery)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= 400 && status < 500 {
			event = log.Warn()
		} else if status >= 500 {
			event = log.Error()
		}

		if route := c.FullPath(); route != "" {
			event = event.Str("route", route)
			if kind := backupKindForRoute(route); kind != "" {
				event = event.Str("backup_kind", string(kind))
			}
		}
		if id := c.GetString(OperationIDKey); id != "" {
			event = event.Str("operation_id", id)
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}
