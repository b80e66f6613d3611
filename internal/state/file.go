package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileManager implements the Manager interface using file-based storage.
// Each run is a <jobID>.state JSON file and each lock a <key>.lock file
// holding its expiry, so processes sharing the directory exclude each other.
type FileManager struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileManager creates a new file-based state manager rooted at baseDir
func NewFileManager(baseDir string) (*FileManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileManager{
		baseDir: baseDir,
	}, nil
}

func (m *FileManager) statePath(jobID string) string {
	return filepath.Join(m.baseDir, fileKey(jobID)+".state")
}

func (m *FileManager) lockPath(key string) string {
	return filepath.Join(m.baseDir, fileKey(key)+".lock")
}

// fileKey keeps keys inside the state directory.
func fileKey(key string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(key)
}

func (m *FileManager) GetState(ctx context.Context, jobID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.readState(m.statePath(jobID))
}

func (m *FileManager) readState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (m *FileManager) UpdateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.statePath(state.JobID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("state not found for job %s", state.JobID)
		}
		return fmt.Errorf("failed to check state file: %w", err)
	}

	cp := *state
	cp.LastUpdated = time.Now()
	return m.saveState(&cp)
}

func (m *FileManager) CreateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.statePath(state.JobID)); err == nil {
		return fmt.Errorf("state already exists for job %s", state.JobID)
	}
	return m.saveState(state)
}

func (m *FileManager) DeleteState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.statePath(jobID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

func (m *FileManager) ListStates(ctx context.Context, table string) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".state" {
			continue
		}
		state, err := m.readState(filepath.Join(m.baseDir, entry.Name()))
		if err != nil || state == nil {
			continue // Skip unreadable states
		}
		if matchesTable(state, table) {
			states = append(states, state)
		}
	}

	sortStates(states)
	return states, nil
}

// LockState creates the lock file exclusively. An expired lock is replaced.
func (m *FileManager) LockState(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockFile := m.lockPath(key)
	data, err := json.Marshal(time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to marshal lock time: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(lockFile)
				return false, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
			}
			return true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("failed to create lock file: %w", err)
		}

		// Lock file exists, check if it's expired
		expired, err := lockExpired(lockFile)
		if err != nil {
			return false, err
		}
		if !expired {
			return false, nil
		}
		if err := os.Remove(lockFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to remove expired lock: %w", err)
		}
	}
	return false, nil
}

func lockExpired(lockFile string) (bool, error) {
	data, err := os.ReadFile(lockFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read lock file: %w", err)
	}

	var lockTime time.Time
	if err := json.Unmarshal(data, &lockTime); err != nil {
		// a torn write leaves an unreadable lock; treat it as expired
		return true, nil
	}
	return !lockTime.After(time.Now()), nil
}

func (m *FileManager) UnlockState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.lockPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *FileManager) saveState(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateFile := m.statePath(state.JobID)
	tmp := stateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, stateFile); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
