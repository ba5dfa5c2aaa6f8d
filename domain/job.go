package domain

import "time"

// JobStatus is the lifecycle state of a queued unit of work.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobLeased     JobStatus = "leased"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// JobName identifies which stage handler a Job dispatches to. Handlers are
// registered against these names in the worker's dispatch table.
type JobName string

const (
	JobParseDocument           JobName = "parse-document"
	JobIngestGraphiti          JobName = "ingest-graphiti"
	JobAnalyzeDocument         JobName = "analyze-document"
	JobExtractFinancials       JobName = "extract-financials"
	JobDetectContradictions    JobName = "detect-contradictions"
	JobIngestQA                JobName = "ingest-qa-response"
	JobIngestChat              JobName = "ingest-chat-fact"
	JobAnalyzeDealFeedback     JobName = "analyze-feedback"
	JobAnalyzeAllDealFeedback  JobName = "analyze-feedback-all"
)

// Job is one durable unit of work dequeued with SELECT ... FOR UPDATE SKIP
// LOCKED. Payload is job-name-specific and decoded by the handler.
// RetryDelaySeconds/RetryBackoff override the queue's per-name retry
// defaults for this job alone; leave both nil to inherit those defaults.
type Job struct {
	ID                string                 `json:"id"`
	Name              JobName                `json:"name"`
	Payload           map[string]interface{} `json:"payload"`
	Status            JobStatus              `json:"status"`
	Priority          int                    `json:"priority"`
	Attempts          int                    `json:"attempts"`
	MaxAttempts       int                    `json:"max_attempts"`
	RunAt             time.Time              `json:"run_at"`
	RetryDelaySeconds *int                   `json:"retry_delay_seconds,omitempty"`
	RetryBackoff      *bool                  `json:"retry_backoff,omitempty"`
	LeasedUntil       *time.Time             `json:"leased_until,omitempty"`
	LastError         string                 `json:"last_error,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// DocumentJobPayload is the payload shape shared by every per-document stage
// job (parse-document, ingest-graphiti, analyze-document, extract-financials).
type DocumentJobPayload struct {
	DocumentID     string `json:"document_id"`
	DealID         string `json:"deal_id"`
	OrganizationID string `json:"organization_id"`
	IsRetry        bool   `json:"is_retry"`
}
