package statemanager

import "time"

// JobState is one tracked job lease, keyed by job id. This is an
// observability side-channel, not the source of truth: the durable job
// queue's domain.JobStatus governs retry/dead-letter behavior regardless
// of what this in-memory view shows (it is bounded and lossy on restart).
type JobState struct {
	ID          string                 `json:"id"`
	WorkerName  string                 `json:"worker_name"`
	JobName     string                 `json:"job_name"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Duration    string                 `json:"duration,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Status is the in-memory lease state of a JobState, distinct from
// domain.JobStatus (the durable queue's own lifecycle).
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stats is aggregated across all tracked JobStates.
type Stats struct {
	TotalJobs       int            `json:"total_jobs"`
	ByStatus        map[Status]int `json:"by_status"`
	ByJobName       map[string]int `json:"by_job_name"`
	AverageDuration string         `json:"average_duration,omitempty"`
}
