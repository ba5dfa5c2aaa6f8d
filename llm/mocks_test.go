package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hoferino/manda-platform/db/repository"
)

type fakeAdapter struct {
	mock.Mock
	name string
}

func (f *fakeAdapter) Run(ctx context.Context, prompt, system string, tier ModelTier, schema map[string]interface{}) (Result, Usage, error) {
	args := f.Called(ctx, prompt, system, tier, schema)
	return args.Get(0).(Result), args.Get(1).(Usage), args.Error(2)
}

func (f *fakeAdapter) Name() string {
	if f.name != "" {
		return f.name
	}
	return "fake"
}

type fakeEmbeddingAdapter struct {
	mock.Mock
	name string
	dims int
}

func (f *fakeEmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	args := f.Called(ctx, texts)
	var vectors [][]float32
	if v := args.Get(0); v != nil {
		vectors = v.([][]float32)
	}
	return vectors, args.Get(1).(Usage), args.Error(2)
}

func (f *fakeEmbeddingAdapter) Dimensions() int {
	return f.dims
}

func (f *fakeEmbeddingAdapter) Name() string {
	if f.name != "" {
		return f.name
	}
	return "fake-embedder"
}

type fakeUsageRepository struct {
	mock.Mock
}

func (f *fakeUsageRepository) RecordUsage(ctx context.Context, record repository.UsageRecord) error {
	args := f.Called(ctx, record)
	return args.Error(0)
}
