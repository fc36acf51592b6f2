package models

import (
	"errors"
	"time"

	pkgmodels "github.com/MacJediWizard/firekeeper/pkg/models"
	"github.com/google/uuid"
)

// OperationState is a type alias for the shared OperationState type in pkg/models.
type OperationState = pkgmodels.OperationState

const (
	OperationStatePending   = pkgmodels.OperationStatePending
	OperationStateCompleted = pkgmodels.OperationStateCompleted
	OperationStateFailed    = pkgmodels.OperationStateFailed
)

// BackupKind identifies what a backup operation exports.
type BackupKind string

const (
	// BackupKindDocuments is a Firestore document export.
	BackupKindDocuments BackupKind = "documents"
	// BackupKindIdentities is a Firebase Authentication user export.
	BackupKindIdentities BackupKind = "identities"
)

// Valid reports whether k is a known backup kind.
func (k BackupKind) Valid() bool {
	return k == BackupKindDocuments || k == BackupKindIdentities
}

// ErrOperationTerminal is returned when a terminal operation is asked to transition again.
var ErrOperationTerminal = errors.New("operation already in a terminal state")

// BackupRequest is a validated-on-admission request to back up one kind of data
// into a destination bucket.
type BackupRequest struct {
	Kind        BackupKind `json:"kind" validate:"required"`
	StorageID   string     `json:"storageId" validate:"required"`
	Path        string     `json:"path" validate:"required"`
	Collections []string   `json:"collections,omitempty" validate:"omitempty,dive,required"`
	DatabaseID  string     `json:"databaseId,omitempty"`
}

// OperationResult holds the success metrics of a completed operation.
type OperationResult struct {
	Count    int64  `json:"count"`
	Size     int64  `json:"size"`
	Location string `json:"location,omitempty"`
}

// Progress reports work done on a long-running platform export.
type Progress struct {
	CompletedWork int64 `json:"completedWork"`
	EstimatedWork int64 `json:"estimatedWork"`
}

// Operation is one backup attempt's lifecycle record.
type Operation struct {
	ID         uuid.UUID        `json:"id"`
	Kind       BackupKind       `json:"kind"`
	State      OperationState   `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Result     *OperationResult `json:"result,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	// ExternalID is the platform operation name for document exports.
	ExternalID string    `json:"external_id,omitempty"`
	Progress   *Progress `json:"progress,omitempty"`
}

// NewOperation creates a pending operation of the given kind.
func NewOperation(kind BackupKind) *Operation {
	return &Operation{
		ID:        uuid.New(),
		Kind:      kind,
		State:     OperationStatePending,
		StartedAt: time.Now(),
	}
}

// Complete marks the operation as completed with the given results.
func (o *Operation) Complete(result OperationResult) error {
	if o.IsTerminal() {
		return ErrOperationTerminal
	}
	now := time.Now()
	o.FinishedAt = &now
	o.State = OperationStateCompleted
	o.Result = &result
	return nil
}

// Fail marks the operation as failed with the given reason.
func (o *Operation) Fail(reason string) error {
	if o.IsTerminal() {
		return ErrOperationTerminal
	}
	now := time.Now()
	o.FinishedAt = &now
	o.State = OperationStateFailed
	o.Reason = reason
	return nil
}

// IsTerminal returns true if the operation has left the pending state.
func (o *Operation) IsTerminal() bool {
	return o.State == OperationStateCompleted || o.State == OperationStateFailed
}

// Duration returns how long the operation ran, or 0 while pending.
func (o *Operation) Duration() time.Duration {
	if o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
