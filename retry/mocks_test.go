package retry

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hoferino/manda-platform/domain"
)

// fakeRelationalRepository is a hand-rolled testify mock covering the slice
// of repository.RelationalRepository the retry Manager actually calls.
// Methods outside that slice are present only to satisfy the interface and
// are never expected to be invoked by these tests.
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
