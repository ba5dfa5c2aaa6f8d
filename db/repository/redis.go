package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheRepository implements CacheRepository. It backs the graph
// client's per-group_id lock and per-provider usage
// counters.
type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(url string) (*RedisCacheRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCacheRepository{client: client}, nil
}

func (r *RedisCacheRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, "lock:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisCacheRepository) ReleaseLock(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, "lock:"+key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheRepository) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, "cache:"+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set cache %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheRepository) GetCache(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, "cache:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisCacheRepository) DeleteCache(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, "cache:"+key).Err(); err != nil {
		return fmt.Errorf("delete cache %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheRepository) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, "counter:"+key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}
