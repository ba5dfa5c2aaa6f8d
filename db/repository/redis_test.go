package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisRepo(t *testing.T) *RedisCacheRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &RedisCacheRepository{client: client}
}

func TestRedisCacheRepository_AcquireLockIsExclusive(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	first, err := repo.AcquireLock(ctx, "group-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.AcquireLock(ctx, "group-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "a held lock must not be re-acquirable")
}

func TestRedisCacheRepository_ReleaseLockAllowsReacquire(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	_, err := repo.AcquireLock(ctx, "group-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.ReleaseLock(ctx, "group-1"))

	again, err := repo.AcquireLock(ctx, "group-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisCacheRepository_SetAndGetCache(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetCache(ctx, "k1", []byte("payload"), time.Minute))

	data, found, err := repo.GetCache(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "payload", string(data))
}

func TestRedisCacheRepository_GetCacheMissReturnsFalseNotError(t *testing.T) {
	repo := newTestRedisRepo(t)
	_, found, err := repo.GetCache(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheRepository_DeleteCacheRemovesKey(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetCache(ctx, "k1", []byte("payload"), time.Minute))
	require.NoError(t, repo.DeleteCache(ctx, "k1"))

	_, found, err := repo.GetCache(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheRepository_IncrementAccumulates(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	n, err := repo.Increment(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Increment(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
