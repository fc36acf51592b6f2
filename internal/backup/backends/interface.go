// Package backends provides the destination storage backends backups are uploaded to,
// along with bucket and retention management for them.
package backends

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/rs/zerolog"
)

// Kind identifies a destination backend implementation.
type Kind string

const (
	// KindGCS is Google Cloud Storage, the default.
	KindGCS Kind = "gcs"
	// KindS3 is any S3-compatible object store.
	KindS3 Kind = "s3"
)

var (
	// ErrBucketNotFound is returned when the addressed bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrRetentionLocked is returned when a change would weaken a locked retention policy.
	ErrRetentionLocked = errors.New("retention policy is locked")
	// ErrNoRetentionPolicy is returned when locking a bucket that has no retention policy.
	ErrNoRetentionPolicy = errors.New("bucket has no retention policy")
)

// UploadResult describes an object written to a destination bucket.
type UploadResult struct {
	// Size is the number of bytes stored.
	Size int64
	// Location is the URI of the stored object.
	Location string
}

// Uploader writes a local file into a bucket.
type Uploader interface {
	Upload(ctx context.Context, bucket, objectPath, localPath string) (UploadResult, error)
}

// BucketManager lists, creates and configures destination buckets.
type BucketManager interface {
	ListBuckets(ctx context.Context) ([]models.Bucket, error)
	GetBucket(ctx context.Context, name string) (*models.Bucket, error)
	CreateBucket(ctx context.Context, req models.CreateBucketRequest) (*models.Bucket, error)
	// SetRetention sets the minimum object age in days. A locked policy may only grow.
	SetRetention(ctx context.Context, name string, days int64) (*models.Bucket, error)
	RemoveRetention(ctx context.Context, name string) (*models.Bucket, error)
	// LockRetention makes the current retention policy permanent. It cannot be undone.
	LockRetention(ctx context.Context, name string) (*models.Bucket, error)
}

// Backend is a complete destination implementation.
type Backend interface {
	Uploader
	BucketManager

	// Type returns the backend kind.
	Type() Kind

	// Close releases the backend's clients.
	Close() error
}

// ParseKind parses a backend name. An empty name selects GCS.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindGCS:
		return KindGCS, nil
	case KindS3:
		return KindS3, nil
	default:
		return "", fmt.Errorf("unsupported destination backend: %s", s)
	}
}

// Config selects and configures a destination backend.
type Config struct {
	Kind Kind
	GCS  GCSConfig
	S3   S3Config
}

// New creates the backend selected by cfg.Kind.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Backend, error) {
	switch cfg.Kind {
	case KindGCS, "":
		return NewGCSBackend(ctx, cfg.GCS, logger)
	case KindS3:
		return NewS3Backend(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unsupported destination backend: %s", cfg.Kind)
	}
}
