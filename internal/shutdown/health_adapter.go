package shutdown

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// HealthStatus is the drain state reported by the agent health endpoint.
// Operations lists backups in flight and Abandoned those still running when
// the drain gave up.
type HealthStatus struct {
	State             string        `json:"state"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	TimeRemaining     time.Duration `json:"time_remaining,omitempty"`
	DrainTimeout      time.Duration `json:"drain_timeout"`
	RunningOperations int           `json:"running_operations"`
	Operations        []string      `json:"operations,omitempty"`
	Abandoned         []string      `json:"abandoned,omitempty"`
	AcceptingNewJobs  bool          `json:"accepting_new_jobs"`
	Message           string        `json:"message,omitempty"`
}

// HealthAdapter exposes the shutdown Manager to the health handler.
type HealthAdapter struct {
	manager *Manager
}

// NewHealthAdapter creates a new health adapter for the shutdown manager.
func NewHealthAdapter(manager *Manager) *HealthAdapter {
	return &HealthAdapter{manager: manager}
}

// GetStatus returns the drain state with the IDs of in-flight backups.
func (a *HealthAdapter) GetStatus() HealthStatus {
	status := a.manager.GetStatus()
	out := HealthStatus{
		State:             string(status.State),
		StartedAt:         status.StartedAt,
		TimeRemaining:     status.TimeRemaining,
		DrainTimeout:      a.manager.config.Timeout,
		RunningOperations: status.RunningOperations,
		Abandoned:         operationIDs(a.manager.Abandoned()),
		AcceptingNewJobs:  status.AcceptingNewJobs,
		Message:           status.Message,
	}
	if a.manager.tracker != nil {
		out.Operations = operationIDs(a.manager.tracker.GetRunningOperationIDs())
		out.RunningOperations = len(out.Operations)
	}
	return out
}

// IsAcceptingJobs returns true if the agent is accepting new backups.
func (a *HealthAdapter) IsAcceptingJobs() bool {
	return a.manager.IsAcceptingJobs()
}

// operationIDs returns ids as sorted strings, or nil when empty.
func operationIDs(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	sort.Strings(out)
	return out
}
