package watch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/Sriram-PR/doc-outline/pkg/refresh"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

const stateFileName = "watch_state.json"

// SourceState is the last refresh of a watched source
type SourceState struct {
	LastRunTime time.Time       `json:"last_run_time"`
	Outcome     refresh.Outcome `json:"outcome"`
	Sections    int             `json:"sections"`
	ErrorType   string          `json:"error_type,omitempty"`
}

// WatchState is the persisted scheduler state
type WatchState struct {
	Sources   map[string]SourceState `json:"sources"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// StateManager loads and saves watch_state.json under the state directory
type StateManager struct {
	mu        sync.RWMutex
	stateDir  string
	statePath string
	state     WatchState
	now       func() time.Time
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     WatchState{Sources: make(map[string]SourceState)},
		now:       time.Now,
	}
}

// Load reads the state file. A missing file is an empty state.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if errors.Is(err, os.ErrNotExist) {
		m.state = WatchState{Sources: make(map[string]SourceState)}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading state file: %w", utils.ErrFilesystem, err)
	}

	var loaded WatchState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("%w: JSON state file %s: %w", utils.ErrParsing, m.statePath, err)
	}
	if loaded.Sources == nil {
		loaded.Sources = make(map[string]SourceState)
	}
	m.state = loaded
	return nil
}

// Save writes the state file, replacing it atomically
func (m *StateManager) Save() error {
	m.mu.Lock()
	m.state.UpdatedAt = m.now()
	data, err := json.MarshalIndent(m.state, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: JSON encoding state: %w", utils.ErrParsing, err)
	}

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: creating state directory: %w", utils.ErrFilesystem, err)
	}
	if err := atomic.WriteFile(m.statePath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: writing state file: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// GetSourceState returns the state for a source
func (m *StateManager) GetSourceState(sourceKey string) (SourceState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Sources[sourceKey]
	return state, ok
}

// Record stores the outcome of a refresh
func (m *StateManager) Record(result refresh.SourceResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Sources[result.SourceKey] = SourceState{
		LastRunTime: m.now(),
		Outcome:     result.Outcome,
		Sections:    result.Sections,
		ErrorType:   result.ErrorType,
	}
}

// ShouldRun reports whether interval has passed since the source last ran
func (m *StateManager) ShouldRun(sourceKey string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Sources[sourceKey]
	if !ok {
		return true
	}
	return m.now().Sub(state.LastRunTime) >= interval
}

// NextRunTime returns when the source is next due
func (m *StateManager) NextRunTime(sourceKey string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Sources[sourceKey]
	if !ok {
		return m.now()
	}
	return state.LastRunTime.Add(interval)
}

// AllSourceStates returns a copy of every recorded state
func (m *StateManager) AllSourceStates() map[string]SourceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]SourceState, len(m.state.Sources))
	for k, v := range m.state.Sources {
		out[k] = v
	}
	return out
}
