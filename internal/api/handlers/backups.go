package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MacJediWizard/firekeeper/internal/api/middleware"
	"github.com/MacJediWizard/firekeeper/internal/backup"
	"github.com/MacJediWizard/firekeeper/internal/export"
	"github.com/MacJediWizard/firekeeper/internal/models"
	pkgmodels "github.com/MacJediWizard/firekeeper/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BackupService runs identity and document backups.
type BackupService interface {
	BackupIdentities(ctx context.Context, storageID, path string) (*models.Operation, error)
	StartDocumentBackup(ctx context.Context, req models.BackupRequest) (*models.Operation, error)
	DocumentBackupStatus(ctx context.Context, operationName string) (*models.Operation, error)
}

// BackupsHandler handles the backup endpoints called by the controller.
type BackupsHandler struct {
	service BackupService
	logger  zerolog.Logger
}

// NewBackupsHandler creates a new BackupsHandler.
func NewBackupsHandler(service BackupService, logger zerolog.Logger) *BackupsHandler {
	return &BackupsHandler{
		service: service,
		logger:  logger.With().Str("component", "backups_handler").Logger(),
	}
}

// RegisterRoutes registers backup routes on the given router group.
func (h *BackupsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.BackupUsers)
	r.POST("/firestore", h.BackupFirestore)
	r.GET("/firestore/status", h.FirestoreStatus)
}

// BackupUsers exports every authentication user into the destination bucket and
// answers once the backup is terminal.
// POST /users
func (h *BackupsHandler) BackupUsers(c *gin.Context) {
	var req pkgmodels.UsersBackupRequest
	if !bindBody(c, &req) {
		return
	}

	op, err := h.service.BackupIdentities(c.Request.Context(), req.StorageID, req.Path)
	if err != nil {
		h.respondRejected(c, err)
		return
	}
	middleware.SetOperationID(c, operationRef(op))

	c.JSON(http.StatusOK, backup.Encode(op))
}

// BackupFirestore starts a managed Firestore export and answers with the pending
// operation identifier, or a failed envelope if the platform refused to start it.
// POST /firestore
func (h *BackupsHandler) BackupFirestore(c *gin.Context) {
	var req pkgmodels.FirestoreBackupRequest
	if !bindBody(c, &req) {
		return
	}

	op, err := h.service.StartDocumentBackup(c.Request.Context(), models.BackupRequest{
		Kind:        models.BackupKindDocuments,
		StorageID:   req.StorageID,
		Path:        req.Path,
		Collections: req.Collections,
		DatabaseID:  req.DatabaseID,
	})
	if err != nil {
		h.respondRejected(c, err)
		return
	}
	middleware.SetOperationID(c, operationRef(op))

	c.JSON(http.StatusOK, backup.Encode(op))
}

// FirestoreStatus re-derives the state of a document export from the platform.
// GET /firestore/status?operationId=
func (h *BackupsHandler) FirestoreStatus(c *gin.Context) {
	operationID := c.Query("operationId")
	middleware.SetOperationID(c, operationID)
	op, err := h.service.DocumentBackupStatus(c.Request.Context(), operationID)
	if err != nil {
		switch {
		case backup.IsRejection(err):
			h.respondRejected(c, err)
		case errors.Is(err, export.ErrExportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "export operation not found"})
		case errors.Is(err, export.ErrInvalidExportName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operationId"})
		default:
			h.logger.Error().Err(err).Str("operation_id", operationID).Msg("failed to check export status")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to check export status"})
		}
		return
	}

	c.JSON(http.StatusOK, backup.Encode(op))
}

// operationRef is the identifier the controller sees for op: the platform
// operation name for document exports, the agent's own ID otherwise.
func operationRef(op *models.Operation) string {
	if op.ExternalID != "" {
		return op.ExternalID
	}
	return op.ID.String()
}

// respondRejected maps errors returned before any side effect to a 4xx/503.
func (h *BackupsHandler) respondRejected(c *gin.Context, err error) {
	var (
		validation *backup.ValidationError
		policy     *backup.PolicyViolationError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &policy):
		c.JSON(http.StatusForbidden, gin.H{"error": policy.Error()})
	case errors.Is(err, backup.ErrDraining):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("backup request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindBody decodes a JSON body, answering 400 or 413 itself on failure.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
