package models

import "time"

// RetentionPolicy describes the minimum time objects must be kept in a bucket.
type RetentionPolicy struct {
	PeriodSeconds int64      `json:"periodSeconds"`
	RetentionDays int64      `json:"retentionDays"`
	EffectiveTime *time.Time `json:"effectiveTime,omitempty"`
	Locked        bool       `json:"locked"`
}

// Bucket is a backup destination as reported by the storage backend.
type Bucket struct {
	Name         string           `json:"name"`
	Location     string           `json:"location,omitempty"`
	StorageClass string           `json:"storageClass,omitempty"`
	CreatedAt    *time.Time       `json:"createdAt,omitempty"`
	Retention    *RetentionPolicy `json:"retention,omitempty"`
}

// CreateBucketRequest holds the settings for a new destination bucket.
type CreateBucketRequest struct {
	Name          string `json:"name" binding:"required"`
	Location      string `json:"location,omitempty"`
	StorageClass  string `json:"storageClass,omitempty"`
	RetentionDays int64  `json:"retentionDays,omitempty" binding:"gte=0"`
}

// SetRetentionRequest is the body of a retention update.
type SetRetentionRequest struct {
	RetentionDays int64 `json:"retentionDays" binding:"required,gt=0"`
}

// NewRetentionPolicy builds a RetentionPolicy from a period.
func NewRetentionPolicy(period time.Duration, effective time.Time, locked bool) *RetentionPolicy {
	p := &RetentionPolicy{
		PeriodSeconds: int64(period / time.Second),
		RetentionDays: int64(period / (24 * time.Hour)),
		Locked:        locked,
	}
	if !effective.IsZero() {
		p.EffectiveTime = &effective
	}
	return p
}
