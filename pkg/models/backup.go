package models

// OperationState represents the current state of a backup operation.
type OperationState string

const (
	// OperationStatePending indicates the export is still running on the platform.
	OperationStatePending OperationState = "pending"
	// OperationStateCompleted indicates the backup completed successfully.
	OperationStateCompleted OperationState = "completed"
	// OperationStateFailed indicates the backup failed.
	OperationStateFailed OperationState = "failed"
)

// UsersBackupRequest is the request body for POST /users.
type UsersBackupRequest struct {
	StorageID string `json:"storageId"`
	Path      string `json:"path"`
}

// FirestoreBackupRequest is the request body for POST /firestore.
type FirestoreBackupRequest struct {
	StorageID   string   `json:"storageId"`
	Path        string   `json:"path"`
	Collections []string `json:"collections,omitempty"`
	DatabaseID  string   `json:"databaseId,omitempty"`
}

// Envelope is the response shape shared by every backup kind. Data depends on State:
// completed carries the success metrics, failed carries a reason, pending carries the
// operation identifier and progress when known.
type Envelope struct {
	State OperationState `json:"state"`
	Data  map[string]any `json:"data"`
}
