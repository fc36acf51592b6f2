package shutdown

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OperationTracker records in-flight backup operations and gates new ones.
type OperationTracker struct {
	logger    zerolog.Logger
	mu        sync.RWMutex
	running   map[uuid.UUID]struct{}
	accepting bool
}

// NewOperationTracker creates a tracker that accepts operations until StopAccepting.
func NewOperationTracker(logger zerolog.Logger) *OperationTracker {
	return &OperationTracker{
		logger:    logger.With().Str("component", "operation_tracker").Logger(),
		running:   make(map[uuid.UUID]struct{}),
		accepting: true,
	}
}

// TryRegister registers an operation as running. It returns false once the tracker
// stopped accepting, in which case the operation must not start.
func (t *OperationTracker) TryRegister(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.accepting {
		return false
	}
	t.running[id] = struct{}{}
	t.logger.Debug().Str("operation_id", id.String()).Msg("operation registered")
	return true
}

// Unregister removes an operation from the running set.
func (t *OperationTracker) Unregister(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, id)
	t.logger.Debug().Str("operation_id", id.String()).Msg("operation unregistered")
}

// GetRunningOperationIDs returns the IDs of all currently running operations.
func (t *OperationTracker) GetRunningOperationIDs() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(t.running))
	for id := range t.running {
		ids = append(ids, id)
	}
	return ids
}

// IsRunning checks if an operation is still running.
func (t *OperationTracker) IsRunning(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, running := t.running[id]
	return running
}

// RunningCount returns the number of currently running operations.
func (t *OperationTracker) RunningCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.running)
}

// StopAccepting makes every later TryRegister fail.
func (t *OperationTracker) StopAccepting() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accepting = false
}

// IsAccepting returns true while new operations may register.
func (t *OperationTracker) IsAccepting() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.accepting
}
