package graph

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
)

type fakeGraphRepository struct {
	mock.Mock
}

func (f *fakeGraphRepository) EnsureSchema(ctx context.Context) error {
	args := f.Called(ctx)
	return args.Error(0)
}

func (f *fakeGraphRepository) AddEpisode(ctx context.Context, groupID string, episode domain.Episode) error {
	args := f.Called(ctx, groupID, episode)
	return args.Error(0)
}

func (f *fakeGraphRepository) Search(ctx context.Context, groupID, query string, numResults int) ([]repository.SearchResult, error) {
	args := f.Called(ctx, groupID, query, numResults)
	res, _ := args.Get(0).([]repository.SearchResult)
	return res, args.Error(1)
}

func (f *fakeGraphRepository) SyncFinding(ctx context.Context, groupID string, finding domain.Finding, documentNodeID string) error {
	args := f.Called(ctx, groupID, finding, documentNodeID)
	return args.Error(0)
}

func (f *fakeGraphRepository) Close(ctx context.Context) error {
	args := f.Called(ctx)
	return args.Error(0)
}

type fakeCacheRepository struct {
	mock.Mock
}

func (f *fakeCacheRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := f.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (f *fakeCacheRepository) ReleaseLock(ctx context.Context, key string) error {
	args := f.Called(ctx, key)
	return args.Error(0)
}

func (f *fakeCacheRepository) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := f.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (f *fakeCacheRepository) GetCache(ctx context.Context, key string) ([]byte, bool, error) {
	args := f.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1), args.Error(2)
}

func (f *fakeCacheRepository) DeleteCache(ctx context.Context, key string) error {
	args := f.Called(ctx, key)
	return args.Error(0)
}

func (f *fakeCacheRepository) Increment(ctx context.Context, key string) (int64, error) {
	args := f.Called(ctx, key)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}
