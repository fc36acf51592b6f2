package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const day = 24 * time.Hour

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	// ProjectID owns the buckets that are listed and created.
	ProjectID string
	// CredentialsFile is a service account key; empty uses application default credentials.
	CredentialsFile string
	// Endpoint overrides the API endpoint, e.g. for an emulator. No credentials are sent.
	Endpoint string
}

// Validate checks if the configuration is valid.
func (c GCSConfig) Validate() error {
	if c.ProjectID == "" {
		return errors.New("gcs backend: project_id is required")
	}
	return nil
}

// GCSBackend stores backups in Google Cloud Storage.
type GCSBackend struct {
	client    *storage.Client
	projectID string
	logger    zerolog.Logger
}

// NewGCSBackend creates a GCS backend.
func NewGCSBackend(ctx context.Context, cfg GCSConfig, logger zerolog.Logger) (*GCSBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := gcsClientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs backend: create client: %w", err)
	}

	return &GCSBackend{
		client:    client,
		projectID: cfg.ProjectID,
		logger:    logger.With().Str("component", "gcs_backend").Logger(),
	}, nil
}

func gcsClientOptions(ctx context.Context, cfg GCSConfig) ([]option.ClientOption, error) {
	if cfg.Endpoint != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.Endpoint),
			option.WithoutAuthentication(),
		}, nil
	}

	if cfg.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl)
	if err != nil {
		return nil, fmt.Errorf("gcs backend: find default credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// Type returns the backend kind.
func (b *GCSBackend) Type() Kind {
	return KindGCS
}

// Close releases the storage client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

// Upload copies localPath to gs://bucket/objectPath.
func (b *GCSBackend) Upload(ctx context.Context, bucket, objectPath, localPath string) (UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	w := b.client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return UploadResult{}, fmt.Errorf("upload to gs://%s/%s: %w", bucket, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("upload to gs://%s/%s: %w", bucket, objectPath, mapGCSError(err))
	}

	attrs := w.Attrs()
	result := UploadResult{Location: gcsLocation(bucket, objectPath)}
	if attrs != nil {
		result.Size = attrs.Size
	}

	b.logger.Debug().
		Str("location", result.Location).
		Int64("size", result.Size).
		Msg("object uploaded")
	return result, nil
}

// ListBuckets lists the project's buckets.
func (b *GCSBackend) ListBuckets(ctx context.Context) ([]models.Bucket, error) {
	var buckets []models.Bucket
	it := b.client.Buckets(ctx, b.projectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}
		buckets = append(buckets, bucketFromAttrs(attrs))
	}
	return buckets, nil
}

// GetBucket returns the bucket's settings including its retention policy.
func (b *GCSBackend) GetBucket(ctx context.Context, name string) (*models.Bucket, error) {
	attrs, err := b.client.Bucket(name).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, mapGCSError(err))
	}
	bucket := bucketFromAttrs(attrs)
	return &bucket, nil
}

// CreateBucket creates a bucket in the project.
func (b *GCSBackend) CreateBucket(ctx context.Context, req models.CreateBucketRequest) (*models.Bucket, error) {
	attrs := &storage.BucketAttrs{
		Location:     req.Location,
		StorageClass: req.StorageClass,
	}
	if req.RetentionDays > 0 {
		attrs.RetentionPolicy = &storage.RetentionPolicy{
			RetentionPeriod: time.Duration(req.RetentionDays) * day,
		}
	}

	if err := b.client.Bucket(req.Name).Create(ctx, b.projectID, attrs); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", req.Name, err)
	}

	b.logger.Info().
		Str("bucket", req.Name).
		Str("location", req.Location).
		Int64("retention_days", req.RetentionDays).
		Msg("bucket created")
	return b.GetBucket(ctx, req.Name)
}

// SetRetention sets the bucket's retention period.
func (b *GCSBackend) SetRetention(ctx context.Context, name string, days int64) (*models.Bucket, error) {
	if days <= 0 {
		return nil, errors.New("retention days must be positive")
	}

	handle := b.client.Bucket(name)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, mapGCSError(err))
	}

	period := time.Duration(days) * day
	if rp := attrs.RetentionPolicy; rp != nil && rp.IsLocked && period < rp.RetentionPeriod {
		return nil, ErrRetentionLocked
	}

	updated, err := handle.Update(ctx, storage.BucketAttrsToUpdate{
		RetentionPolicy: &storage.RetentionPolicy{RetentionPeriod: period},
	})
	if err != nil {
		return nil, fmt.Errorf("set retention on %s: %w", name, mapGCSError(err))
	}

	b.logger.Info().Str("bucket", name).Int64("retention_days", days).Msg("retention policy set")
	bucket := bucketFromAttrs(updated)
	return &bucket, nil
}

// RemoveRetention deletes an unlocked retention policy.
func (b *GCSBackend) RemoveRetention(ctx context.Context, name string) (*models.Bucket, error) {
	handle := b.client.Bucket(name)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, mapGCSError(err))
	}
	if attrs.RetentionPolicy == nil {
		bucket := bucketFromAttrs(attrs)
		return &bucket, nil
	}
	if attrs.RetentionPolicy.IsLocked {
		return nil, ErrRetentionLocked
	}

	// A zero period deletes the policy.
	updated, err := handle.Update(ctx, storage.BucketAttrsToUpdate{
		RetentionPolicy: &storage.RetentionPolicy{RetentionPeriod: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("remove retention on %s: %w", name, mapGCSError(err))
	}

	b.logger.Info().Str("bucket", name).Msg("retention policy removed")
	bucket := bucketFromAttrs(updated)
	return &bucket, nil
}

// LockRetention permanently locks the bucket's retention policy.
func (b *GCSBackend) LockRetention(ctx context.Context, name string) (*models.Bucket, error) {
	handle := b.client.Bucket(name)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, mapGCSError(err))
	}
	if attrs.RetentionPolicy == nil {
		return nil, ErrNoRetentionPolicy
	}
	if !attrs.RetentionPolicy.IsLocked {
		err := handle.If(storage.BucketConditions{MetagenerationMatch: attrs.MetaGeneration}).
			LockRetentionPolicy(ctx)
		if err != nil {
			return nil, fmt.Errorf("lock retention on %s: %w", name, mapGCSError(err))
		}
		b.logger.Warn().Str("bucket", name).Msg("retention policy locked")
	}
	return b.GetBucket(ctx, name)
}

func bucketFromAttrs(attrs *storage.BucketAttrs) models.Bucket {
	bucket := models.Bucket{
		Name:         attrs.Name,
		Location:     attrs.Location,
		StorageClass: attrs.StorageClass,
	}
	if !attrs.Created.IsZero() {
		created := attrs.Created
		bucket.CreatedAt = &created
	}
	if rp := attrs.RetentionPolicy; rp != nil && rp.RetentionPeriod > 0 {
		bucket.Retention = models.NewRetentionPolicy(rp.RetentionPeriod, rp.EffectiveTime, rp.IsLocked)
	}
	return bucket
}

func mapGCSError(err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	}
	return err
}

func gcsLocation(bucket, objectPath string) string {
	return "gs://" + bucket + "/" + objectPath
}
