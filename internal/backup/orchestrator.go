package backup

import (
	"context"
	"time"

	"github.com/MacJediWizard/firekeeper/internal/backup/backends"
	"github.com/MacJediWizard/firekeeper/internal/export"
	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdentityExporter writes every identity record into a local file.
type IdentityExporter interface {
	ExportUsers(ctx context.Context, path string) error
}

// DocumentExporter starts and inspects managed document export jobs.
type DocumentExporter interface {
	StartExport(ctx context.Context, req export.DocumentExportRequest) (string, error)
	CheckStatus(ctx context.Context, operationName string) (export.DocumentExportStatus, error)
}

// Uploader writes a local file into a destination bucket.
type Uploader interface {
	Upload(ctx context.Context, bucket, objectPath, localPath string) (backends.UploadResult, error)
}

// MetricsRecorder receives operation outcomes.
type MetricsRecorder interface {
	RecordOperation(kind, state string, duration time.Duration, sizeBytes int64)
	RecordStatusCheck(kind, state string)
}

// OperationTracker lets graceful shutdown see in-flight operations.
// TryRegister returns false once the agent stops accepting work.
type OperationTracker interface {
	TryRegister(id uuid.UUID) bool
	Unregister(id uuid.UUID)
}

// Config holds the orchestrator's fixed settings.
type Config struct {
	// ProjectID is the project whose data is exported.
	ProjectID string
}

// Orchestrator runs backups: gate, export, verify, upload, resolve.
type Orchestrator struct {
	config    Config
	gate      *Gate
	temp      *TempStore
	identity  IdentityExporter
	documents DocumentExporter
	uploader  Uploader
	metrics   MetricsRecorder
	tracker   OperationTracker
	logger    zerolog.Logger
}

// Option configures optional Orchestrator collaborators.
type Option func(*Orchestrator)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracker sets the in-flight operation tracker.
func WithTracker(t OperationTracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	cfg Config,
	gate *Gate,
	temp *TempStore,
	identity IdentityExporter,
	documents DocumentExporter,
	uploader Uploader,
	logger zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		config:    cfg,
		gate:      gate,
		temp:      temp,
		identity:  identity,
		documents: documents,
		uploader:  uploader,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Gate returns the request gate used by the orchestrator.
func (o *Orchestrator) Gate() *Gate {
	return o.gate
}

// BackupIdentities exports all identity records, verifies the export and uploads it.
// The returned error is non-nil only when the request was rejected before any side
// effect (gate or shutdown); every pipeline failure is reported as a failed operation.
func (o *Orchestrator) BackupIdentities(ctx context.Context, storageID, path string) (*models.Operation, error) {
	req := models.BackupRequest{
		Kind:      models.BackupKindIdentities,
		StorageID: storageID,
		Path:      path,
	}
	if err := o.gate.Admit(req); err != nil {
		o.logger.Warn().Err(err).Str("storage_id", storageID).Msg("identity backup rejected")
		return nil, err
	}

	op := models.NewOperation(models.BackupKindIdentities)
	if !o.register(op.ID) {
		return nil, ErrDraining
	}
	defer o.unregister(op.ID)

	log := o.logger.With().
		Str("operation_id", op.ID.String()).
		Str("storage_id", storageID).
		Str("path", path).
		Logger()
	log.Info().Msg("identity backup started")

	o.runIdentityPipeline(ctx, op, req, log)

	event := log.Info()
	if op.State == models.OperationStateFailed {
		event = log.Error()
	}
	event.
		Str("state", string(op.State)).
		Str("reason", op.Reason).
		Dur("duration", op.Duration()).
		Msg("identity backup finished")

	o.recordOperation(op)
	return op, nil
}

// runIdentityPipeline executes export -> verify -> upload strictly in order and
// releases the staged artifact on every path before returning.
func (o *Orchestrator) runIdentityPipeline(ctx context.Context, op *models.Operation, req models.BackupRequest, log zerolog.Logger) {
	artifact, err := o.temp.Acquire(req.Path)
	if err != nil {
		Resolve(op, &ExportError{Err: err}, nil, nil)
		return
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			log.Warn().Err(err).Msg("artifact cleanup failed")
		}
	}()

	if err := o.identity.ExportUsers(ctx, artifact.Path); err != nil {
		log.Error().Err(err).Msg("identity export failed")
		Resolve(op, &ExportError{Err: err}, nil, nil)
		return
	}

	metrics, err := VerifyIdentityArtifact(artifact.Path)
	verify := &VerifyOutcome{Metrics: metrics, Err: err}
	if err != nil {
		log.Error().Err(err).Msg("identity export could not be parsed")
		Resolve(op, nil, verify, nil)
		return
	}
	log.Debug().Int64("records", metrics.Count).Int64("bytes", metrics.Bytes).Msg("identity export verified")

	result, err := o.uploader.Upload(ctx, req.StorageID, req.Path, artifact.Path)
	upload := &UploadOutcome{Result: result}
	if err != nil {
		log.Error().Err(err).Msg("identity export upload failed")
		upload.Err = &UploadError{Err: err}
	}

	Resolve(op, nil, verify, upload)
}

func (o *Orchestrator) register(id uuid.UUID) bool {
	if o.tracker == nil {
		return true
	}
	return o.tracker.TryRegister(id)
}

func (o *Orchestrator) unregister(id uuid.UUID) {
	if o.tracker != nil {
		o.tracker.Unregister(id)
	}
}

func (o *Orchestrator) recordOperation(op *models.Operation) {
	if o.metrics == nil {
		return
	}
	var size int64
	if op.Result != nil {
		size = op.Result.Size
	}
	o.metrics.RecordOperation(string(op.Kind), string(op.State), op.Duration(), size)
}
