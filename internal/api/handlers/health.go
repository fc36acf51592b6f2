package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/MacJediWizard/firekeeper/internal/shutdown"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDraining  HealthStatus = "draining"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  HealthStatus                  `json:"status"`
	Runtime *config.RuntimeEnvironment    `json:"runtime,omitempty"`
	Checks  map[string]*HealthCheckResult `json:"checks,omitempty"`
}

// ShutdownStatusProvider reports the graceful shutdown state.
type ShutdownStatusProvider interface {
	GetStatus() shutdown.HealthStatus
	IsAcceptingJobs() bool
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	shutdown ShutdownStatusProvider
	runtime  config.RuntimeEnvironment
	tempDir  string
	logger   zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. shutdown may be nil.
func NewHealthHandler(shutdown ShutdownStatusProvider, runtime config.RuntimeEnvironment, tempDir string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		shutdown: shutdown,
		runtime:  runtime,
		tempDir:  tempDir,
		logger:   logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers health check routes that don't require authentication.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/live", h.Live)
	}
}

// Overall reports whether the agent can take new backups.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	runtime := h.runtime
	response := &HealthResponse{
		Status:  HealthStatusHealthy,
		Runtime: &runtime,
		Checks: map[string]*HealthCheckResult{
			"shutdown": h.checkShutdown(),
			"temp_dir": h.checkTempDir(),
		},
	}

	status := http.StatusOK
	for _, check := range response.Checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			response.Status = HealthStatusUnhealthy
			status = http.StatusServiceUnavailable
		case HealthStatusDraining:
			if response.Status == HealthStatusHealthy {
				response.Status = HealthStatusDraining
				status = http.StatusServiceUnavailable
			}
		}
	}

	c.JSON(status, response)
}

// Live answers as long as the process serves HTTP.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": HealthStatusHealthy})
}

func (h *HealthHandler) checkShutdown() *HealthCheckResult {
	if h.shutdown == nil {
		return &HealthCheckResult{Status: HealthStatusHealthy}
	}

	st := h.shutdown.GetStatus()
	result := &HealthCheckResult{
		Status: HealthStatusHealthy,
		Details: map[string]any{
			"state":              st.State,
			"running_operations": st.RunningOperations,
			"accepting":          st.AcceptingNewJobs,
		},
	}
	if len(st.Operations) > 0 {
		result.Details["operations"] = st.Operations
	}
	if len(st.Abandoned) > 0 {
		result.Details["abandoned"] = st.Abandoned
	}
	if !h.shutdown.IsAcceptingJobs() {
		result.Status = HealthStatusDraining
		result.Error = st.Message
	}
	return result
}

// checkTempDir verifies artifacts can be staged.
func (h *HealthHandler) checkTempDir() *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{Status: HealthStatusHealthy}

	err := func() error {
		if err := os.MkdirAll(h.tempDir, 0o700); err != nil {
			return err
		}
		f, err := os.CreateTemp(h.tempDir, ".health-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}()
	result.Duration = time.Since(start).String()

	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "temp directory not writable"
		h.logger.Warn().Err(err).Str("dir", h.tempDir).Msg("temp dir health check failed")
	}
	return result
}
