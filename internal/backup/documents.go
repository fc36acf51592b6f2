package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/MacJediWizard/firekeeper/internal/export"
	"github.com/MacJediWizard/firekeeper/internal/models"
)

// DefaultDatabaseID is the Firestore database exported when none is named.
const DefaultDatabaseID = "(default)"

// StartDocumentBackup admits the request and starts a managed document export.
// Document exports outlive a single HTTP request, so a successful start returns a
// pending operation whose ExternalID is polled through DocumentBackupStatus.
func (o *Orchestrator) StartDocumentBackup(ctx context.Context, req models.BackupRequest) (*models.Operation, error) {
	req.Kind = models.BackupKindDocuments
	if err := o.gate.Admit(req); err != nil {
		o.logger.Warn().Err(err).Str("storage_id", req.StorageID).Msg("document backup rejected")
		return nil, err
	}

	op := models.NewOperation(models.BackupKindDocuments)
	if !o.register(op.ID) {
		return nil, ErrDraining
	}
	defer o.unregister(op.ID)

	databaseID := req.DatabaseID
	if databaseID == "" {
		databaseID = DefaultDatabaseID
	}

	exportReq := export.DocumentExportRequest{
		ProjectID:       o.config.ProjectID,
		DatabaseID:      databaseID,
		OutputURIPrefix: GCSURI(req.StorageID, req.Path),
		CollectionIDs:   req.Collections,
	}

	log := o.logger.With().
		Str("operation_id", op.ID.String()).
		Str("storage_id", req.StorageID).
		Str("path", req.Path).
		Str("database_id", databaseID).
		Strs("collections", req.Collections).
		Logger()

	name, err := o.documents.StartExport(ctx, exportReq)
	if err != nil {
		log.Error().Err(err).Msg("document export failed to start")
		_ = op.Fail(err.Error())
		o.recordOperation(op)
		return op, nil
	}

	op.ExternalID = name
	log.Info().Str("export_operation", name).Msg("document export started")
	o.recordOperation(op)
	return op, nil
}

// DocumentBackupStatus re-derives the state of a document export from the platform.
// It keeps no state between calls, so repeated polls of a finished export return the
// same terminal result. A non-nil error means the platform could not be asked.
func (o *Orchestrator) DocumentBackupStatus(ctx context.Context, operationName string) (*models.Operation, error) {
	operationName = strings.TrimSpace(operationName)
	if operationName == "" {
		return nil, &ValidationError{Field: "operationId", Reason: "is required"}
	}

	// A failed poll says nothing about the export itself, so it is not reported as a
	// failed operation.
	status, err := o.documents.CheckStatus(ctx, operationName)
	if err != nil {
		o.logger.Error().Err(err).Str("export_operation", operationName).Msg("document export status check failed")
		return nil, fmt.Errorf("check export status: %w", err)
	}

	op := models.NewOperation(models.BackupKindDocuments)
	op.ExternalID = operationName

	if !status.StartTime.IsZero() {
		op.StartedAt = status.StartTime
	}

	switch status.State {
	case export.StateCompleted:
		_ = op.Complete(models.OperationResult{
			Count:    status.Documents.Completed,
			Size:     status.Bytes.Completed,
			Location: status.OutputURIPrefix,
		})
		if !status.EndTime.IsZero() {
			op.FinishedAt = &status.EndTime
		}
	case export.StateFailed:
		_ = op.Fail(status.Error)
		if !status.EndTime.IsZero() {
			op.FinishedAt = &status.EndTime
		}
	default:
		if status.Documents.Estimated > 0 || status.Documents.Completed > 0 {
			op.Progress = &models.Progress{
				CompletedWork: status.Documents.Completed,
				EstimatedWork: status.Documents.Estimated,
			}
		}
	}

	o.recordStatusCheck(op)
	return op, nil
}

func (o *Orchestrator) recordStatusCheck(op *models.Operation) {
	if o.metrics != nil {
		o.metrics.RecordStatusCheck(string(op.Kind), string(op.State))
	}
}

// GCSURI builds the gs:// URI for an object path inside a bucket.
func GCSURI(bucket, path string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(path, "/"))
}
