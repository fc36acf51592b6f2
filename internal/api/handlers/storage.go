package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MacJediWizard/firekeeper/internal/backup"
	"github.com/MacJediWizard/firekeeper/internal/backup/backends"
	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BucketStore lists, creates and configures destination buckets.
type BucketStore interface {
	ListBuckets(ctx context.Context) ([]models.Bucket, error)
	GetBucket(ctx context.Context, name string) (*models.Bucket, error)
	CreateBucket(ctx context.Context, req models.CreateBucketRequest) (*models.Bucket, error)
	SetRetention(ctx context.Context, name string, days int64) (*models.Bucket, error)
	RemoveRetention(ctx context.Context, name string) (*models.Bucket, error)
	LockRetention(ctx context.Context, name string) (*models.Bucket, error)
}

// BucketGate applies the bucket allowlist.
type BucketGate interface {
	AdmitBucket(bucket string) error
	Allows(bucket string) bool
}

// StorageHandler handles bucket and retention management endpoints.
type StorageHandler struct {
	store  BucketStore
	gate   BucketGate
	logger zerolog.Logger
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(store BucketStore, gate BucketGate, logger zerolog.Logger) *StorageHandler {
	return &StorageHandler{
		store:  store,
		gate:   gate,
		logger: logger.With().Str("component", "storage_handler").Logger(),
	}
}

// RegisterRoutes registers storage routes on the given router group. Routes that
// change bucket configuration additionally pass through admin.
func (h *StorageHandler) RegisterRoutes(r *gin.RouterGroup, admin gin.HandlerFunc) {
	storage := r.Group("/storage")
	{
		storage.GET("", h.List)
		storage.GET("/:id", h.Get)
		storage.POST("", admin, h.Create)
		storage.PUT("/:id/retention", admin, h.SetRetention)
		storage.DELETE("/:id/retention", admin, h.RemoveRetention)
		storage.POST("/:id/retention/lock", admin, h.LockRetention)
	}
}

// List returns the destination buckets the agent may use.
// GET /storage
func (h *StorageHandler) List(c *gin.Context) {
	buckets, err := h.store.ListBuckets(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list buckets")
		return
	}

	allowed := make([]models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if h.gate.Allows(b.Name) {
			allowed = append(allowed, b)
		}
	}

	c.JSON(http.StatusOK, gin.H{"buckets": allowed})
}

// Get returns one bucket including its retention policy.
// GET /storage/:id
func (h *StorageHandler) Get(c *gin.Context) {
	name, ok := h.admitParam(c)
	if !ok {
		return
	}

	bucket, err := h.store.GetBucket(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err, "failed to get bucket")
		return
	}
	c.JSON(http.StatusOK, bucket)
}

// Create creates a destination bucket, optionally with a retention policy.
// POST /storage
func (h *StorageHandler) Create(c *gin.Context) {
	var req models.CreateBucketRequest
	if !bindBody(c, &req) {
		return
	}
	if !h.admit(c, req.Name) {
		return
	}

	bucket, err := h.store.CreateBucket(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "failed to create bucket")
		return
	}

	h.logger.Info().
		Str("bucket", req.Name).
		Int64("retention_days", req.RetentionDays).
		Msg("bucket created")
	c.JSON(http.StatusCreated, bucket)
}

// SetRetention sets or extends the bucket retention period.
// PUT /storage/:id/retention
func (h *StorageHandler) SetRetention(c *gin.Context) {
	name, ok := h.admitParam(c)
	if !ok {
		return
	}
	var req models.SetRetentionRequest
	if !bindBody(c, &req) {
		return
	}

	bucket, err := h.store.SetRetention(c.Request.Context(), name, req.RetentionDays)
	if err != nil {
		h.respondError(c, err, "failed to set retention")
		return
	}

	h.logger.Info().Str("bucket", name).Int64("retention_days", req.RetentionDays).Msg("retention updated")
	c.JSON(http.StatusOK, bucket)
}

// RemoveRetention clears an unlocked retention policy.
// DELETE /storage/:id/retention
func (h *StorageHandler) RemoveRetention(c *gin.Context) {
	name, ok := h.admitParam(c)
	if !ok {
		return
	}

	bucket, err := h.store.RemoveRetention(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err, "failed to remove retention")
		return
	}

	h.logger.Info().Str("bucket", name).Msg("retention removed")
	c.JSON(http.StatusOK, bucket)
}

// LockRetention permanently locks the bucket retention policy.
// POST /storage/:id/retention/lock
func (h *StorageHandler) LockRetention(c *gin.Context) {
	name, ok := h.admitParam(c)
	if !ok {
		return
	}

	bucket, err := h.store.LockRetention(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err, "failed to lock retention")
		return
	}

	h.logger.Warn().Str("bucket", name).Msg("retention policy locked")
	c.JSON(http.StatusOK, bucket)
}

func (h *StorageHandler) admitParam(c *gin.Context) (string, bool) {
	name := c.Param("id")
	return name, h.admit(c, name)
}

func (h *StorageHandler) admit(c *gin.Context, bucket string) bool {
	err := h.gate.AdmitBucket(bucket)
	if err == nil {
		return true
	}

	var policy *backup.PolicyViolationError
	if errors.As(err, &policy) {
		c.JSON(http.StatusForbidden, gin.H{"error": policy.Error()})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}

func (h *StorageHandler) respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, backends.ErrBucketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
	case errors.Is(err, backends.ErrRetentionLocked), errors.Is(err, backends.ErrNoRetentionPolicy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	}
}
