// Package statemanager tracks recently-leased job state in memory for
// operability (a "what is this worker doing right now" view), separate
// from the durable job queue it observes. Adapted from an operation
// tracker: ServiceName generalizes to per-worker WorkerName, Operation
// generalizes to domain.JobName, and the same bounded-eviction discipline
// keeps memory flat under sustained throughput.
package statemanager

import (
	"sync"
	"time"
)

// Manager holds the last MaxJobs leases across every worker in one
// process, evicting the oldest when full.
type Manager struct {
	mu         sync.RWMutex
	jobs       map[string]*JobState
	maxJobs    int
	workerName string
}

// Config configures a Manager.
type Config struct {
	WorkerName string
	MaxJobs    int // default 1000
}

func New(cfg Config) *Manager {
	if cfg.MaxJobs == 0 {
		cfg.MaxJobs = 1000
	}
	return &Manager{
		jobs:       make(map[string]*JobState),
		maxJobs:    cfg.MaxJobs,
		workerName: cfg.WorkerName,
	}
}

// StartJob records jobID entering the running state.
func (m *Manager) StartJob(jobID, jobName string) *JobState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) >= m.maxJobs {
		m.evictOldest()
	}

	job := &JobState{
		ID:         jobID,
		WorkerName: m.workerName,
		JobName:    jobName,
		Status:     StatusRunning,
		StartedAt:  time.Now(),
	}
	m.jobs[jobID] = job
	return job
}

// CompleteJob marks jobID completed or failed, recording err if non-nil.
func (m *Manager) CompleteJob(jobID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	now := time.Now()
	job.CompletedAt = &now
	job.Duration = now.Sub(job.StartedAt).String()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
	}
}

// GetJob retrieves a tracked job by id, or nil if not tracked (evicted or
// never started).
func (m *Manager) GetJob(jobID string) *JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[jobID]
	if !exists {
		return nil
	}
	jobCopy := *job
	return &jobCopy
}

// ListJobs returns every tracked job.
func (m *Manager) ListJobs() []*JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*JobState, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobCopy := *job
		out = append(out, &jobCopy)
	}
	return out
}

// Stats aggregates the currently tracked jobs.
func (m *Manager) Stats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		TotalJobs: len(m.jobs),
		ByStatus:  make(map[Status]int),
		ByJobName: make(map[string]int),
	}

	var totalDuration time.Duration
	var completedCount int
	for _, job := range m.jobs {
		stats.ByStatus[job.Status]++
		stats.ByJobName[job.JobName]++
		if job.CompletedAt != nil {
			totalDuration += job.CompletedAt.Sub(job.StartedAt)
			completedCount++
		}
	}
	if completedCount > 0 {
		stats.AverageDuration = (totalDuration / time.Duration(completedCount)).String()
	}
	return stats
}

func (m *Manager) evictOldest() {
	var oldestID string
	var oldestTime time.Time
	for id, job := range m.jobs {
		if oldestID == "" || job.StartedAt.Before(oldestTime) {
			oldestID = id
			oldestTime = job.StartedAt
		}
	}
	if oldestID != "" {
		delete(m.jobs, oldestID)
	}
}
