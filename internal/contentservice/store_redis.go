package contentservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	redisEntryPrefix = "blog:cache:post:"
	redisIndexKey    = "blog:cache:index"
)

// RedisStore keeps the same records as FileStore under string keys. A single SET is atomic for readers.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, slug string) (*CacheEntry, error) {
	var entry CacheEntry
	if err := s.get(ctx, redisEntryPrefix+slug, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *CacheEntry) error {
	return s.set(ctx, redisEntryPrefix+entry.Slug, entry)
}

func (s *RedisStore) GetIndex(ctx context.Context) (*CacheIndex, error) {
	var index CacheIndex
	if err := s.get(ctx, redisIndexKey, &index); err != nil {
		return nil, err
	}

	return &index, nil
}

func (s *RedisStore) PutIndex(ctx context.Context, index *CacheIndex) error {
	return s.set(ctx, redisIndexKey, index)
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("could not read %s: %w", key, err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("could not decode %s: %w", key, err)
	}

	return nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("could not write %s: %w", key, err)
	}

	return nil
}
