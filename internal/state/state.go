// Package state records pipeline runs and guards a staging table against
// concurrent runs.
package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gerhard-ee/arlstage/internal/config"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// State represents one pipeline run
type State struct {
	JobID        string    `json:"job_id"`
	Table        string    `json:"table"`
	SourcePath   string    `json:"source_path,omitempty"`
	Encoding     string    `json:"encoding,omitempty"`
	Delimiter    string    `json:"delimiter,omitempty"`
	LoadedRows   int64     `json:"loaded_rows"`
	ExportedRows int64     `json:"exported_rows"`
	Status       string    `json:"status"` // "running", "completed", "failed", "skipped"
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Manager defines the interface for state management
type Manager interface {
	// GetState retrieves the state for a job, or nil when there is none
	GetState(ctx context.Context, jobID string) (*State, error)

	// UpdateState updates the state for a job
	UpdateState(ctx context.Context, state *State) error

	// CreateState creates a new state for a job
	CreateState(ctx context.Context, state *State) error

	// DeleteState removes the state for a job
	DeleteState(ctx context.Context, jobID string) error

	// ListStates retrieves all states for a given table, oldest first. An
	// empty table lists every state.
	ListStates(ctx context.Context, table string) ([]*State, error)

	// LockState acquires a lock on key for ttl. It reports false when another
	// holder's lock has not expired yet.
	LockState(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// UnlockState releases a lock on key
	UnlockState(ctx context.Context, key string) error
}

// NewManager creates the state manager selected by cfg.Type.
func NewManager(cfg config.StateConfig) (Manager, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryManager(), nil
	case "file":
		return NewFileManager(cfg.Dir)
	case "kubernetes":
		return NewKubernetesManager(cfg.Namespace)
	default:
		return nil, fmt.Errorf("unsupported state type: %s", cfg.Type)
	}
}

// sortStates orders states by start time, then job id.
func sortStates(states []*State) {
	sort.Slice(states, func(i, j int) bool {
		if !states[i].StartedAt.Equal(states[j].StartedAt) {
			return states[i].StartedAt.Before(states[j].StartedAt)
		}
		return states[i].JobID < states[j].JobID
	})
}

func matchesTable(s *State, table string) bool {
	return table == "" || s.Table == table
}
