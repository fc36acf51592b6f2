package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DisabledHandler answers every request with 503 when the agent could not
// determine its runtime environment.
type DisabledHandler struct {
	reason string
	logger zerolog.Logger
}

// NewDisabledHandler creates a new DisabledHandler.
func NewDisabledHandler(reason string, logger zerolog.Logger) *DisabledHandler {
	return &DisabledHandler{
		reason: reason,
		logger: logger.With().Str("component", "disabled_handler").Logger(),
	}
}

// Register installs the handler for every path and method.
func (h *DisabledHandler) Register(r *gin.Engine) {
	r.NoRoute(h.Handle)
}

// Handle rejects the request.
func (h *DisabledHandler) Handle(c *gin.Context) {
	h.logger.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("request to disabled agent")
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "agent disabled: " + h.reason})
}
