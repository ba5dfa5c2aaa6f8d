package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/llm"
)

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
	deal, _ := args.Get(0).(*domain.Deal)
	return deal, args.Error(1)
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
	entries, _ := args.Get(0).([]domain.RetryHistoryEntry)
	return entries, args.Error(1)
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

type fakeEmbeddingAdapter struct {
	mock.Mock
}

func (f *fakeEmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, llm.Usage, error) {
	args := f.Called(ctx, texts)
	var vectors [][]float32
	if v := args.Get(0); v != nil {
		vectors = v.([][]float32)
	}
	return vectors, args.Get(1).(llm.Usage), args.Error(2)
}

func (f *fakeEmbeddingAdapter) Dimensions() int { return 3072 }
func (f *fakeEmbeddingAdapter) Name() string    { return "fake-embedder" }

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
	results, _ := args.Get(0).([]repository.SearchResult)
	return results, args.Error(1)
}

func (f *fakeGraphRepository) SyncFinding(ctx context.Context, groupID string, finding domain.Finding, documentNodeID string) error {
	return f.Called(ctx, groupID, finding, documentNodeID).Error(0)
}

func (f *fakeGraphRepository) Close(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

// alwaysUnlockedCache satisfies repository.CacheRepository without
// per-test lock bookkeeping, matching stages/mocks_test.go's fake of the
// same name.
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
