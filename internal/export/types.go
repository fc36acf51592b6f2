// Package export drives the platform export jobs for Firebase Authentication users and
// Firestore documents.
package export

import (
	"errors"
	"time"
)

var (
	// ErrExportNotFound is returned when the platform knows no export by the given name.
	ErrExportNotFound = errors.New("export operation not found")
	// ErrInvalidExportName is returned when the platform rejects the operation name.
	ErrInvalidExportName = errors.New("invalid export operation name")
)

// DocumentExportState is the platform-reported state of a document export job.
type DocumentExportState string

const (
	// StateRunning indicates the export job has not finished.
	StateRunning DocumentExportState = "running"
	// StateCompleted indicates the export job finished successfully.
	StateCompleted DocumentExportState = "completed"
	// StateFailed indicates the export job finished with an error.
	StateFailed DocumentExportState = "failed"
)

// DocumentExportRequest describes one Firestore export.
type DocumentExportRequest struct {
	ProjectID  string
	DatabaseID string
	// OutputURIPrefix is the gs:// location the export is written under.
	OutputURIPrefix string
	// CollectionIDs limits the export; empty exports every collection.
	CollectionIDs []string
}

// DatabaseName returns the fully qualified Firestore database resource name.
func (r DocumentExportRequest) DatabaseName() string {
	return "projects/" + r.ProjectID + "/databases/" + r.DatabaseID
}

// Progress is a completed/estimated work pair as reported by the platform.
type Progress struct {
	Completed int64
	Estimated int64
}

// DocumentExportStatus is one observation of a document export job.
type DocumentExportStatus struct {
	Name            string
	State           DocumentExportState
	Documents       Progress
	Bytes           Progress
	OutputURIPrefix string
	StartTime       time.Time
	EndTime         time.Time
	// Error is the platform's failure message when State is StateFailed.
	Error string
}
