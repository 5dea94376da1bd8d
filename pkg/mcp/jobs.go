package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/doc-outline/pkg/refresh"
)

// JobStatus represents the current state of a refresh job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background source refresh
type Job struct {
	ID           string          `json:"id"`
	SourceKey    string          `json:"source_key"`
	Status       JobStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  time.Time       `json:"completed_at,omitempty"`
	Outcome      refresh.Outcome `json:"outcome,omitempty"`
	Sections     int             `json:"sections"`
	ErrorType    string          `json:"error_type,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background refresh jobs, at most one active per source
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	bySource map[string]string // sourceKey -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		bySource: make(map[string]string),
	}
}

// CreateJob creates a pending job for a source. If one is already active the
// existing job is returned and created is false.
func (m *JobManager) CreateJob(sourceKey string) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.bySource[sourceKey]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.active() {
			return *existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.New().String(),
		SourceKey: sourceKey,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[j.ID] = j
	m.bySource[sourceKey] = j.ID
	return *j, true
}

// GetJob returns a snapshot of a job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// ActiveJob returns the pending or running job for a source, if any
func (m *JobManager) ActiveJob(sourceKey string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.bySource[sourceKey]; ok {
		if j := m.jobs[id]; j != nil && j.Status.active() {
			return *j, true
		}
	}
	return Job{}, false
}

// Start marks a job running and returns its context
func (m *JobManager) Start(jobID string) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return context.Background()
	}
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
	return j.ctx
}

// Finish records a refresh result against a job. A job cancelled while
// running stays cancelled.
func (m *JobManager) Finish(jobID string, result refresh.SourceResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.Status.active() {
		return
	}
	j.Outcome = result.Outcome
	j.Sections = result.Sections
	j.ErrorType = result.ErrorType
	if result.Err != nil {
		j.ErrorMessage = result.Err.Error()
	}
	j.Status = JobStatusCompleted
	if result.Outcome == refresh.OutcomeFailed {
		j.Status = JobStatusFailed
	}
	m.complete(j)
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.Status.active() {
		return false
	}
	j.Status = JobStatusCancelled
	m.complete(j)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status.active() {
			j.Status = JobStatusCancelled
			m.complete(j)
		}
	}
}

// ListJobs returns snapshots of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.Before(jobs[b].StartedAt) })
	return jobs
}

// complete must be called with m.mu held
func (m *JobManager) complete(j *Job) {
	j.CompletedAt = time.Now()
	j.cancel()
	if m.bySource[j.SourceKey] == j.ID {
		delete(m.bySource, j.SourceKey)
	}
}
