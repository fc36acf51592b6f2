// Package shutdown provides graceful shutdown coordination for the backup agent.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrOperationsAbandoned is returned by Shutdown when operations were still running
// once the drain timeout elapsed or the context was cancelled.
var ErrOperationsAbandoned = errors.New("shutdown abandoned running operations")

// State represents the current shutdown state.
type State string

const (
	// StateRunning indicates the agent is running normally.
	StateRunning State = "running"
	// StateDraining indicates the agent refuses new backups and waits for running ones.
	StateDraining State = "draining"
	// StateComplete indicates shutdown is complete.
	StateComplete State = "complete"
)

// Tracker exposes the in-flight operations the manager waits for.
type Tracker interface {
	// GetRunningOperationIDs returns the IDs of all in-flight operations.
	GetRunningOperationIDs() []uuid.UUID

	// StopAccepting makes every later registration fail.
	StopAccepting()

	// IsAccepting returns true while new operations may start.
	IsAccepting() bool
}

// Status represents the current shutdown status.
type Status struct {
	State             State         `json:"state"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	TimeRemaining     time.Duration `json:"time_remaining,omitempty"`
	RunningOperations int           `json:"running_operations"`
	AcceptingNewJobs  bool          `json:"accepting_new_jobs"`
	Message           string        `json:"message,omitempty"`
}

// Config holds configuration for the shutdown manager.
type Config struct {
	// Timeout is the maximum time to wait for in-flight operations.
	Timeout time.Duration

	// PollInterval is how often the running set is checked while draining.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Manager coordinates graceful shutdown of the agent.
type Manager struct {
	config       Config
	tracker      Tracker
	logger       zerolog.Logger
	mu           sync.RWMutex
	state        State
	startedAt    *time.Time
	doneCh       chan struct{}
	shutdownOnce sync.Once
	abandoned    []uuid.UUID
}

// NewManager creates a new shutdown manager.
func NewManager(config Config, tracker Tracker, logger zerolog.Logger) *Manager {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Manager{
		config:  config,
		tracker: tracker,
		logger:  logger.With().Str("component", "shutdown_manager").Logger(),
		state:   StateRunning,
		doneCh:  make(chan struct{}),
	}
}

// IsAcceptingJobs returns true if the agent is accepting new backups.
func (m *Manager) IsAcceptingJobs() bool {
	if m.tracker == nil {
		return m.GetState() == StateRunning
	}
	return m.tracker.IsAccepting()
}

// GetState returns the current shutdown state.
func (m *Manager) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GetStatus returns the current shutdown status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	status := Status{
		State:     m.state,
		StartedAt: m.startedAt,
	}
	m.mu.RUnlock()

	status.AcceptingNewJobs = m.IsAcceptingJobs()
	if m.tracker != nil {
		status.RunningOperations = len(m.tracker.GetRunningOperationIDs())
	}

	if status.StartedAt != nil {
		remaining := m.config.Timeout - time.Since(*status.StartedAt)
		if remaining > 0 {
			status.TimeRemaining = remaining
		}
	}

	switch status.State {
	case StateRunning:
		status.Message = "Agent is running normally"
	case StateDraining:
		status.Message = "Agent is draining, not accepting new backups"
	case StateComplete:
		status.Message = "Shutdown complete"
	}

	return status
}

// Shutdown stops accepting backups and blocks until running operations finish, the
// timeout elapses or ctx is cancelled. Only the first call does any work. The error
// wraps ErrOperationsAbandoned when operations were left running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.doShutdown(ctx)
	})
	<-m.doneCh

	m.mu.RLock()
	abandoned := len(m.abandoned)
	m.mu.RUnlock()
	if abandoned > 0 {
		return fmt.Errorf("%w: %d still running", ErrOperationsAbandoned, abandoned)
	}
	return nil
}

// Abandoned returns the operations still running when the drain gave up.
func (m *Manager) Abandoned() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, len(m.abandoned))
	copy(out, m.abandoned)
	return out
}

func (m *Manager) doShutdown(ctx context.Context) {
	m.logger.Info().Dur("timeout", m.config.Timeout).Msg("initiating graceful shutdown")

	now := time.Now()
	m.mu.Lock()
	m.startedAt = &now
	m.state = StateDraining
	m.mu.Unlock()

	if m.tracker != nil {
		m.tracker.StopAccepting()
		m.logger.Info().Msg("stopped accepting new backups")

		waitCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
		abandoned := m.waitForOperations(waitCtx)
		cancel()

		m.mu.Lock()
		m.abandoned = abandoned
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.state = StateComplete
	m.mu.Unlock()
	close(m.doneCh)

	m.logger.Info().Dur("duration", time.Since(now)).Msg("graceful shutdown complete")
}

// waitForOperations waits for running operations to complete and returns those
// still running when ctx ends.
func (m *Manager) waitForOperations(ctx context.Context) []uuid.UUID {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		running := m.tracker.GetRunningOperationIDs()
		if len(running) == 0 {
			m.logger.Info().Msg("all operations completed")
			return nil
		}

		m.logger.Debug().
			Int("running_operations", len(running)).
			Msg("waiting for running operations to complete")

		select {
		case <-ctx.Done():
			ids := make([]string, len(running))
			for i, id := range running {
				ids[i] = id.String()
			}
			m.logger.Warn().
				Strs("operation_ids", ids).
				Msg("shutdown timeout reached with operations still running")
			return running
		case <-ticker.C:
		}
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}

// WaitForShutdown blocks until shutdown is complete.
func (m *Manager) WaitForShutdown() {
	<-m.doneCh
}
