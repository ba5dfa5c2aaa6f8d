// Package repository abstracts storage into three specialized interfaces:
// RelationalRepository (documents, chunks, findings, metrics,
// contradictions, jobs in Postgres), GraphRepository (temporal knowledge
// graph in Neo4j), and CacheRepository (locks and usage counters in Redis).
// Stage handlers depend on these interfaces, never on pgx/neo4j/redis
// directly.
package repository

import (
	"context"
	"time"

	"github.com/hoferino/manda-platform/domain"
)

// RelationalRepository is the source of truth: documents, their derived
// artifacts, and the job queue all live here. Multi-statement operations
// that must be seen atomically by the rest of the system are exposed as
// single methods so the implementation can wrap them in one transaction.
type RelationalRepository interface {
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)

	// StoreChunksAndUpdateStatus deletes any existing chunks for the
	// document, inserts chunks, and advances processing_status in one
	// transaction.
	StoreChunksAndUpdateStatus(ctx context.Context, documentID string, chunks []domain.Chunk, newStatus domain.ProcessingStatus) error
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
	UpdateEmbeddingsAndStatus(ctx context.Context, documentID string, embeddings map[string][]float32, newStatus domain.ProcessingStatus) error
	DeleteChunks(ctx context.Context, documentID string) error
	ClearChunkEmbeddings(ctx context.Context, documentID string) error

	// StoreFindingsAndUpdateStatus persists findings and advances
	// processing_status in one transaction.
	StoreFindingsAndUpdateStatus(ctx context.Context, documentID string, findings []domain.Finding, newStatus domain.ProcessingStatus) error
	GetFindingsForDeal(ctx context.Context, dealID string, excludeStatus domain.FindingStatus) ([]domain.Finding, error)
	DeleteFindings(ctx context.Context, documentID string) error

	StoreFinancialMetrics(ctx context.Context, documentID string, metrics []domain.FinancialMetric) error

	// InsertContradictionIfAbsent enforces the unordered-pair uniqueness
	// invariant at the storage layer.
	InsertContradictionIfAbsent(ctx context.Context, c domain.Contradiction) (inserted bool, err error)
	ContradictionExists(ctx context.Context, dealID, findingAID, findingBID string) (bool, error)

	UpdateProcessingStatus(ctx context.Context, documentID string, status domain.ProcessingStatus) error
	UpdateLastCompletedStage(ctx context.Context, documentID string, stage domain.Stage) error
	SetProcessingError(ctx context.Context, documentID string, procErr *domain.ProcessingError) error
	ClearProcessingError(ctx context.Context, documentID string) error
	AppendRetryHistory(ctx context.Context, documentID string, entry domain.RetryHistoryEntry) error
	GetRetryHistory(ctx context.Context, documentID string) ([]domain.RetryHistoryEntry, error)

	ListDealsWithFeedbackActivity(ctx context.Context, since time.Time) ([]string, error)

	// GetFindingsUpdatedSince returns every validated/rejected finding for
	// dealID whose status last changed at or after since, the feedback
	// source analyze-feedback aggregates over.
	GetFindingsUpdatedSince(ctx context.Context, dealID string, since time.Time) ([]domain.Finding, error)

	// UpsertFeedbackAnalytics replaces the analytics row for
	// (deal_id, analysis_date), keyed by that pair.
	UpsertFeedbackAnalytics(ctx context.Context, analytics domain.DealFeedbackAnalytics) error

	// SearchSimilarChunks backs GET /api/search/similar: ranks
	// embedded chunks within organizationID by cosine similarity to
	// queryEmbedding, optionally narrowed to dealID/documentID, returning
	// the top limit matches.
	SearchSimilarChunks(ctx context.Context, organizationID string, queryEmbedding []float32, dealID, documentID *string, limit int) ([]domain.SimilarChunkResult, error)
}

// QueueRepository is the durable job queue. It is defined alongside
// RelationalRepository because both are backed by the same Postgres
// instance, but kept as a separate interface so the queue package can take
// a narrower dependency.
type QueueRepository interface {
	Enqueue(ctx context.Context, job domain.Job) (string, error)
	Dequeue(ctx context.Context, name domain.JobName, batchSize int, visibilityTimeout time.Duration) ([]domain.Job, error)
	Complete(ctx context.Context, jobID string, output map[string]interface{}) error
	Fail(ctx context.Context, jobID string, errMessage string) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	QueueCounts(ctx context.Context) (map[domain.JobName]map[domain.JobStatus]int, error)
}

// GraphRepository wraps the temporal knowledge graph. Every method takes an
// explicit groupID; callers never pass organization_id/deal_id separately
// so that namespace isolation cannot be bypassed by a call site forgetting
// to scope a query.
type GraphRepository interface {
	EnsureSchema(ctx context.Context) error
	AddEpisode(ctx context.Context, groupID string, episode domain.Episode) error
	Search(ctx context.Context, groupID, query string, numResults int) ([]SearchResult, error)
	SyncFinding(ctx context.Context, groupID string, finding domain.Finding, documentNodeID string) error
	Close(ctx context.Context) error
}

// SearchResult is one hit from a GraphRepository.Search call.
type SearchResult struct {
	EntityID string
	Name     string
	Type     string
	Score    float64
	Summary  string
}

// CacheRepository manages ephemeral per-group locks and usage counters.
type CacheRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetCache(ctx context.Context, key string) ([]byte, bool, error)
	DeleteCache(ctx context.Context, key string) error

	Increment(ctx context.Context, key string) (int64, error)
}

// UsageRecord is one LLM/embedding call's cost accounting row.
type UsageRecord struct {
	OrganizationID string
	DealID         string
	UserID         string
	Feature        string
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	CostUSD        float64
	LatencyMS      int64
	Timestamp      time.Time
}

// UsageRepository persists capability-adapter cost and latency accounting.
type UsageRepository interface {
	RecordUsage(ctx context.Context, record UsageRecord) error
}
