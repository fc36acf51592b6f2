// Package backup orchestrates Firestore and Firebase Authentication backups: request
// admission, artifact staging, verification, upload and status reporting.
package backup

import (
	"errors"
	"fmt"
)

// ParseFailureReason is reported to the controller when an exported artifact cannot be read.
const ParseFailureReason = "Failed to parse the backup file"

// ErrDraining is returned when the agent is shutting down and refuses new backups.
var ErrDraining = errors.New("agent is shutting down, not accepting new backups")

// ValidationError reports a request that is missing or has malformed fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// PolicyViolationError reports a request addressing a bucket outside the allowlist.
type PolicyViolationError struct {
	Bucket string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("bucket %q is not in the allowed storage list", e.Bucket)
}

// ExportError wraps a failure reported by the platform export job.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string { return e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }

// ParseFailure reports an exported artifact that could not be parsed.
type ParseFailure struct {
	Path string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse artifact %s: %v", e.Path, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// UploadError wraps a failure writing the artifact to the destination bucket.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// IsRejection reports whether err came from the request gate, meaning no side effect
// has happened and the caller should answer with a 4xx.
func IsRejection(err error) bool {
	var ve *ValidationError
	var pv *PolicyViolationError
	return errors.As(err, &ve) || errors.As(err, &pv)
}
