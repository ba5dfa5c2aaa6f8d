package stages

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/llm"
)

// fakeRelationalRepository mirrors retry.fakeRelationalRepository; each
// package hand-rolls its own since the fake is test-only and unexported.
type fakeRelationalRepository struct {
	mock.Mock
}

func (f *fakeRelationalRepository) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	args := f.Called(ctx, documentID)
	doc, _ := args.Get(0).(*domain.Document)
	return doc, args.Error(1)
}

func (f *fakeRelationalRepository) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	args := f.Called(ctx, dealID)
	d, _ := args.Get(0).(*domain.Deal)
	return d, args.Error(1)
}

func (f *fakeRelationalRepository) StoreChunksAndUpdateStatus(ctx context.Context, documentID string, chunks []domain.Chunk, newStatus domain.ProcessingStatus) error {
	return f.Called(ctx, documentID, chunks, newStatus).Error(0)
}

func (f *fakeRelationalRepository) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	args := f.Called(ctx, documentID)
	chunks, _ := args.Get(0).([]domain.Chunk)
	return chunks, args.Error(1)
}

func (f *fakeRelationalRepository) UpdateEmbeddingsAndStatus(ctx context.Context, documentID string, embeddings map[string][]float32, newStatus domain.ProcessingStatus) error {
	return f.Called(ctx, documentID, embeddings, newStatus).Error(0)
}

func (f *fakeRelationalRepository) DeleteChunks(ctx context.Context, documentID string) error {
	return f.Called(ctx, documentID).Error(0)
}

func (f *fakeRelationalRepository) ClearChunkEmbeddings(ctx context.Context, documentID string) error {
	return f.Called(ctx, documentID).Error(0)
}

func (f *fakeRelationalRepository) StoreFindingsAndUpdateStatus(ctx context.Context, documentID string, findings []domain.Finding, newStatus domain.ProcessingStatus) error {
	return f.Called(ctx, documentID, findings, newStatus).Error(0)
}

func (f *fakeRelationalRepository) GetFindingsForDeal(ctx context.Context, dealID string, excludeStatus domain.FindingStatus) ([]domain.Finding, error) {
	args := f.Called(ctx, dealID, excludeStatus)
	findings, _ := args.Get(0).([]domain.Finding)
	return findings, args.Error(1)
}

func (f *fakeRelationalRepository) DeleteFindings(ctx context.Context, documentID string) error {
	return f.Called(ctx, documentID).Error(0)
}

func (f *fakeRelationalRepository) StoreFinancialMetrics(ctx context.Context, documentID string, metrics []domain.FinancialMetric) error {
	return f.Called(ctx, documentID, metrics).Error(0)
}

func (f *fakeRelationalRepository) InsertContradictionIfAbsent(ctx context.Context, c domain.Contradiction) (bool, error) {
	args := f.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (f *fakeRelationalRepository) ContradictionExists(ctx context.Context, dealID, findingAID, findingBID string) (bool, error) {
	args := f.Called(ctx, dealID, findingAID, findingBID)
	return args.Bool(0), args.Error(1)
}

func (f *fakeRelationalRepository) UpdateProcessingStatus(ctx context.Context, documentID string, status domain.ProcessingStatus) error {
	return f.Called(ctx, documentID, status).Error(0)
}

func (f *fakeRelationalRepository) UpdateLastCompletedStage(ctx context.Context, documentID string, stage domain.Stage) error {
	return f.Called(ctx, documentID, stage).Error(0)
}

func (f *fakeRelationalRepository) SetProcessingError(ctx context.Context, documentID string, procErr *domain.ProcessingError) error {
	return f.Called(ctx, documentID, procErr).Error(0)
}

func (f *fakeRelationalRepository) ClearProcessingError(ctx context.Context, documentID string) error {
	return f.Called(ctx, documentID).Error(0)
}

func (f *fakeRelationalRepository) AppendRetryHistory(ctx context.Context, documentID string, entry domain.RetryHistoryEntry) error {
	return f.Called(ctx, documentID, entry).Error(0)
}

func (f *fakeRelationalRepository) GetRetryHistory(ctx context.Context, documentID string) ([]domain.RetryHistoryEntry, error) {
	args := f.Called(ctx, documentID)
	history, _ := args.Get(0).([]domain.RetryHistoryEntry)
	return history, args.Error(1)
}

func (f *fakeRelationalRepository) ListDealsWithFeedbackActivity(ctx context.Context, since time.Time) ([]string, error) {
	args := f.Called(ctx, since)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (f *fakeRelationalRepository) GetFindingsUpdatedSince(ctx context.Context, dealID string, since time.Time) ([]domain.Finding, error) {
	args := f.Called(ctx, dealID, since)
	findings, _ := args.Get(0).([]domain.Finding)
	return findings, args.Error(1)
}

func (f *fakeRelationalRepository) UpsertFeedbackAnalytics(ctx context.Context, analytics domain.DealFeedbackAnalytics) error {
	return f.Called(ctx, analytics).Error(0)
}

func (f *fakeRelationalRepository) SearchSimilarChunks(ctx context.Context, organizationID string, queryEmbedding []float32, dealID, documentID *string, limit int) ([]domain.SimilarChunkResult, error) {
	args := f.Called(ctx, organizationID, queryEmbedding, dealID, documentID, limit)
	results, _ := args.Get(0).([]domain.SimilarChunkResult)
	return results, args.Error(1)
}

type fakeQueueRepository struct {
	mock.Mock
}

func (f *fakeQueueRepository) Enqueue(ctx context.Context, job domain.Job) (string, error) {
	args := f.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (f *fakeQueueRepository) Dequeue(ctx context.Context, name domain.JobName, batchSize int, visibilityTimeout time.Duration) ([]domain.Job, error) {
	args := f.Called(ctx, name, batchSize, visibilityTimeout)
	jobs, _ := args.Get(0).([]domain.Job)
	return jobs, args.Error(1)
}

func (f *fakeQueueRepository) Complete(ctx context.Context, jobID string, output map[string]interface{}) error {
	return f.Called(ctx, jobID, output).Error(0)
}

func (f *fakeQueueRepository) Fail(ctx context.Context, jobID string, errMessage string) error {
	return f.Called(ctx, jobID, errMessage).Error(0)
}

func (f *fakeQueueRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	args := f.Called(ctx, jobID)
	j, _ := args.Get(0).(*domain.Job)
	return j, args.Error(1)
}

func (f *fakeQueueRepository) QueueCounts(ctx context.Context) (map[domain.JobName]map[domain.JobStatus]int, error) {
	args := f.Called(ctx)
	counts, _ := args.Get(0).(map[domain.JobName]map[domain.JobStatus]int)
	return counts, args.Error(1)
}

// fakeGraphRepository and fakeCacheRepository let tests wire a real
// *graph.Client (not a mock of Client itself, which has no interface) into
// Deps.Graph.
type fakeGraphRepository struct {
	mock.Mock
}

func (f *fakeGraphRepository) EnsureSchema(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

func (f *fakeGraphRepository) AddEpisode(ctx context.Context, groupID string, episode domain.Episode) error {
	return f.Called(ctx, groupID, episode).Error(0)
}

func (f *fakeGraphRepository) Search(ctx context.Context, groupID, query string, numResults int) ([]repository.SearchResult, error) {
	args := f.Called(ctx, groupID, query, numResults)
	res, _ := args.Get(0).([]repository.SearchResult)
	return res, args.Error(1)
}

func (f *fakeGraphRepository) SyncFinding(ctx context.Context, groupID string, finding domain.Finding, documentNodeID string) error {
	return f.Called(ctx, groupID, finding, documentNodeID).Error(0)
}

func (f *fakeGraphRepository) Close(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

type fakeCacheRepository struct {
	mock.Mock
}

func (f *fakeCacheRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := f.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (f *fakeCacheRepository) ReleaseLock(ctx context.Context, key string) error {
	return f.Called(ctx, key).Error(0)
}

func (f *fakeCacheRepository) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return f.Called(ctx, key, value, ttl).Error(0)
}

func (f *fakeCacheRepository) GetCache(ctx context.Context, key string) ([]byte, bool, error) {
	args := f.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1), args.Error(2)
}

func (f *fakeCacheRepository) DeleteCache(ctx context.Context, key string) error {
	return f.Called(ctx, key).Error(0)
}

func (f *fakeCacheRepository) Increment(ctx context.Context, key string) (int64, error) {
	args := f.Called(ctx, key)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// alwaysUnlockedCache answers every AcquireLock call with success so tests
// that exercise graph episode ingestion don't need to set per-call
// expectations on the locking side channel.
type alwaysUnlockedCache struct{}

func (alwaysUnlockedCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (alwaysUnlockedCache) ReleaseLock(ctx context.Context, key string) error { return nil }
func (alwaysUnlockedCache) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (alwaysUnlockedCache) GetCache(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}
func (alwaysUnlockedCache) DeleteCache(ctx context.Context, key string) error { return nil }
func (alwaysUnlockedCache) Increment(ctx context.Context, key string) (int64, error) {
	return 1, nil
}

type fakeBlobStore struct {
	localPath string
	err       error
	cleaned   bool
}

func (f *fakeBlobStore) Download(ctx context.Context, blobReference string) (string, func(), error) {
	if f.err != nil {
		return "", func() {}, f.err
	}
	return f.localPath, func() { f.cleaned = true }, nil
}

type fakeAdapter struct {
	mock.Mock
}

func (f *fakeAdapter) Run(ctx context.Context, prompt string, system string, tier llm.ModelTier, schema map[string]interface{}) (llm.Result, llm.Usage, error) {
	args := f.Called(ctx, prompt, system, tier, schema)
	res, _ := args.Get(0).(llm.Result)
	usage, _ := args.Get(1).(llm.Usage)
	return res, usage, args.Error(2)
}

func (f *fakeAdapter) Name() string { return "fake-adapter" }

type fakeEmbeddingAdapter struct {
	mock.Mock
}

func (f *fakeEmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, llm.Usage, error) {
	args := f.Called(ctx, texts)
	vecs, _ := args.Get(0).([][]float32)
	usage, _ := args.Get(1).(llm.Usage)
	return vecs, usage, args.Error(2)
}

func (f *fakeEmbeddingAdapter) Dimensions() int { return 768 }
func (f *fakeEmbeddingAdapter) Name() string    { return "fake-embedder" }

type fakeUsageRepository struct {
	mock.Mock
}

func (f *fakeUsageRepository) RecordUsage(ctx context.Context, record repository.UsageRecord) error {
	return f.Called(ctx, record).Error(0)
}
