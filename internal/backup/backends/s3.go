package backends

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const defaultS3Region = "us-east-1"

// S3Config configures an S3-compatible destination.
// Supports AWS S3, MinIO, the GCS XML interoperability API and other S3-compatible services.
type S3Config struct {
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
}

// Validate checks if the configuration is valid.
func (c S3Config) Validate() error {
	if c.AccessKeyID == "" {
		return errors.New("s3 backend: access_key_id is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("s3 backend: secret_access_key is required")
	}
	return nil
}

func (c S3Config) region() string {
	if c.Region == "" {
		return defaultS3Region
	}
	return c.Region
}

// endpointURL returns the custom endpoint with a scheme, or "" for AWS.
func (c S3Config) endpointURL() string {
	if c.Endpoint == "" {
		return ""
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	endpoint := c.Endpoint
	if u, err := url.Parse(c.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
	}
	return fmt.Sprintf("%s://%s", scheme, endpoint)
}

// S3Backend stores backups in an S3-compatible object store. Retention is implemented
// with S3 Object Lock default retention: GOVERNANCE while unlocked, COMPLIANCE once locked.
type S3Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	region   string
	logger   zerolog.Logger
}

// NewS3Backend creates an S3 backend.
func NewS3Backend(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.region()),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: failed to load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if endpoint := cfg.endpointURL(); endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)
	return &S3Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		region:   cfg.region(),
		logger:   logger.With().Str("component", "s3_backend").Logger(),
	}, nil
}

// Type returns the backend kind.
func (b *S3Backend) Type() Kind {
	return KindS3
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (b *S3Backend) Close() error {
	return nil
}

// Upload copies localPath to s3://bucket/objectPath.
func (b *S3Backend) Upload(ctx context.Context, bucket, objectPath, localPath string) (UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat artifact: %w", err)
	}

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectPath),
		Body:        f,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload to s3://%s/%s: %w", bucket, objectPath, mapS3Error(err))
	}

	result := UploadResult{Size: info.Size(), Location: "s3://" + bucket + "/" + objectPath}
	b.logger.Debug().
		Str("location", result.Location).
		Int64("size", result.Size).
		Msg("object uploaded")
	return result, nil
}

// ListBuckets lists the account's buckets. Retention is not fetched per bucket.
func (b *S3Backend) ListBuckets(ctx context.Context) ([]models.Bucket, error) {
	out, err := b.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := make([]models.Bucket, 0, len(out.Buckets))
	for _, bkt := range out.Buckets {
		bucket := models.Bucket{Name: aws.ToString(bkt.Name)}
		if bkt.CreationDate != nil {
			created := *bkt.CreationDate
			bucket.CreatedAt = &created
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// GetBucket returns the bucket with its default object lock retention.
func (b *S3Backend) GetBucket(ctx context.Context, name string) (*models.Bucket, error) {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, mapS3Error(err))
	}

	bucket := &models.Bucket{Name: name, Location: b.region}
	retention, err := b.defaultRetention(ctx, name)
	if err != nil {
		return nil, err
	}
	bucket.Retention = retention
	return bucket, nil
}

// CreateBucket creates a bucket with object lock enabled so retention can be applied later.
func (b *S3Backend) CreateBucket(ctx context.Context, req models.CreateBucketRequest) (*models.Bucket, error) {
	input := &s3.CreateBucketInput{
		Bucket:                     aws.String(req.Name),
		ObjectLockEnabledForBucket: aws.Bool(true),
	}
	region := req.Location
	if region == "" {
		region = b.region
	}
	if region != defaultS3Region {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", req.Name, err)
	}
	b.logger.Info().Str("bucket", req.Name).Str("region", region).Msg("bucket created")

	if req.RetentionDays > 0 {
		return b.SetRetention(ctx, req.Name, req.RetentionDays)
	}
	return b.GetBucket(ctx, req.Name)
}

// SetRetention sets the default retention in GOVERNANCE mode, or extends it in
// COMPLIANCE mode when already locked.
func (b *S3Backend) SetRetention(ctx context.Context, name string, days int64) (*models.Bucket, error) {
	if days <= 0 {
		return nil, errors.New("retention days must be positive")
	}

	current, err := b.defaultRetention(ctx, name)
	if err != nil {
		return nil, err
	}

	mode := types.ObjectLockRetentionModeGovernance
	if current != nil && current.Locked {
		if days < current.RetentionDays {
			return nil, ErrRetentionLocked
		}
		mode = types.ObjectLockRetentionModeCompliance
	}

	if err := b.putRetention(ctx, name, &types.DefaultRetention{
		Mode: mode,
		Days: aws.Int32(int32(days)),
	}); err != nil {
		return nil, fmt.Errorf("set retention on %s: %w", name, err)
	}

	b.logger.Info().Str("bucket", name).Int64("retention_days", days).Msg("retention policy set")
	return b.GetBucket(ctx, name)
}

// RemoveRetention clears the default retention unless it is locked.
func (b *S3Backend) RemoveRetention(ctx context.Context, name string) (*models.Bucket, error) {
	current, err := b.defaultRetention(ctx, name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return b.GetBucket(ctx, name)
	}
	if current.Locked {
		return nil, ErrRetentionLocked
	}

	if err := b.putRetention(ctx, name, nil); err != nil {
		return nil, fmt.Errorf("remove retention on %s: %w", name, err)
	}

	b.logger.Info().Str("bucket", name).Msg("retention policy removed")
	return b.GetBucket(ctx, name)
}

// LockRetention switches the default retention to COMPLIANCE mode.
func (b *S3Backend) LockRetention(ctx context.Context, name string) (*models.Bucket, error) {
	current, err := b.defaultRetention(ctx, name)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoRetentionPolicy
	}

	if !current.Locked {
		if err := b.putRetention(ctx, name, &types.DefaultRetention{
			Mode: types.ObjectLockRetentionModeCompliance,
			Days: aws.Int32(int32(current.RetentionDays)),
		}); err != nil {
			return nil, fmt.Errorf("lock retention on %s: %w", name, err)
		}
		b.logger.Warn().Str("bucket", name).Msg("retention policy locked")
	}
	return b.GetBucket(ctx, name)
}

func (b *S3Backend) putRetention(ctx context.Context, name string, retention *types.DefaultRetention) error {
	lock := &types.ObjectLockConfiguration{ObjectLockEnabled: types.ObjectLockEnabledEnabled}
	if retention != nil {
		lock.Rule = &types.ObjectLockRule{DefaultRetention: retention}
	}
	_, err := b.client.PutObjectLockConfiguration(ctx, &s3.PutObjectLockConfigurationInput{
		Bucket:                  aws.String(name),
		ObjectLockConfiguration: lock,
	})
	return mapS3Error(err)
}

// defaultRetention returns nil when the bucket has no default retention rule.
func (b *S3Backend) defaultRetention(ctx context.Context, name string) (*models.RetentionPolicy, error) {
	out, err := b.client.GetObjectLockConfiguration(ctx, &s3.GetObjectLockConfigurationInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if s3ErrorCode(err) == "ObjectLockConfigurationNotFoundError" {
			return nil, nil
		}
		return nil, fmt.Errorf("get retention of %s: %w", name, mapS3Error(err))
	}
	return retentionFromLock(out.ObjectLockConfiguration), nil
}

func retentionFromLock(lock *types.ObjectLockConfiguration) *models.RetentionPolicy {
	if lock == nil || lock.Rule == nil || lock.Rule.DefaultRetention == nil {
		return nil
	}
	dr := lock.Rule.DefaultRetention

	days := int64(aws.ToInt32(dr.Days))
	if years := aws.ToInt32(dr.Years); years > 0 {
		days = int64(years) * 365
	}
	if days == 0 {
		return nil
	}

	return &models.RetentionPolicy{
		PeriodSeconds: days * int64(day.Seconds()),
		RetentionDays: days,
		Locked:        dr.Mode == types.ObjectLockRetentionModeCompliance,
	}
}

func s3ErrorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noBucket) || strings.EqualFold(s3ErrorCode(err), "NoSuchBucket") {
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	}
	return err
}
