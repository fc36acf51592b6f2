package backup

import (
	"github.com/MacJediWizard/firekeeper/internal/backup/backends"
	"github.com/MacJediWizard/firekeeper/internal/models"
)

// VerifyOutcome is the result of reading back a staged artifact.
type VerifyOutcome struct {
	Metrics VerifiedMetrics
	Err     error
}

// UploadOutcome is the result of writing the artifact to its destination.
type UploadOutcome struct {
	Result backends.UploadResult
	Err    error
}

// Resolve folds the stage outcomes of one identity backup into a terminal operation.
// Stages are inspected in pipeline order and the first failure wins; a nil outcome
// means the stage never ran, which only happens after an earlier failure.
func Resolve(op *models.Operation, exportErr error, verify *VerifyOutcome, upload *UploadOutcome) *models.Operation {
	switch {
	case exportErr != nil:
		_ = op.Fail(exportErr.Error())
	case verify == nil || verify.Err != nil:
		_ = op.Fail(ParseFailureReason)
	case upload == nil:
		_ = op.Fail("upload did not run")
	case upload.Err != nil:
		_ = op.Fail(upload.Err.Error())
	default:
		_ = op.Complete(models.OperationResult{
			Count:    verify.Metrics.Count,
			Size:     upload.Result.Size,
			Location: upload.Result.Location,
		})
	}
	return op
}
