package handlers

import (
	"net/http"
	"runtime"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// supportedBackupKinds is advertised so a controller can tell which backup
// routes this agent build serves.
var supportedBackupKinds = []models.BackupKind{
	models.BackupKindIdentities,
	models.BackupKindDocuments,
}

// VersionInfo identifies the agent build and the deployment it runs in.
type VersionInfo struct {
	Version      string              `json:"version"`
	Commit       string              `json:"commit,omitempty"`
	BuildDate    string              `json:"build_date,omitempty"`
	GoVersion    string              `json:"go_version"`
	ProjectID    string              `json:"projectId,omitempty"`
	FunctionName string              `json:"functionName,omitempty"`
	Region       string              `json:"region,omitempty"`
	BackupKinds  []models.BackupKind `json:"backupKinds"`
}

// VersionHandler serves GET /version.
type VersionHandler struct {
	info   VersionInfo
	logger zerolog.Logger
}

// NewVersionHandler creates a new VersionHandler. The agent URL is not reported.
func NewVersionHandler(version, commit, buildDate string, env config.RuntimeEnvironment, logger zerolog.Logger) *VersionHandler {
	return &VersionHandler{
		info: VersionInfo{
			Version:      version,
			Commit:       commit,
			BuildDate:    buildDate,
			GoVersion:    runtime.Version(),
			ProjectID:    env.ProjectID,
			FunctionName: env.FunctionName,
			Region:       env.Region,
			BackupKinds:  supportedBackupKinds,
		},
		logger: logger.With().Str("component", "version_handler").Logger(),
	}
}

// RegisterPublicRoutes registers version routes that don't require authentication.
func (h *VersionHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/version", h.Get)
}

// Get returns the agent version information.
// GET /version
func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
