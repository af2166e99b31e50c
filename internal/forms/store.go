package forms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultStoreKey is the redis key holding the per-install form blob.
const DefaultStoreKey = "site:forms"

// Store persists the serialized form collection as a single blob.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// RedisStore keeps the blob under one redis key.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a store; an empty key selects DefaultStoreKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if client == nil {
		panic("forms: redis client required")
	}
	if key == "" {
		key = DefaultStoreKey
	}
	return &RedisStore{redis: client, key: key}
}

// Load returns ErrNotConfigured when the key is absent.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("forms: get config: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("forms: set config: %w", err)
	}
	return nil
}

// MemoryStore keeps the blob in process; used by tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore optionally seeds the store with a blob.
func NewMemoryStore(seed []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), seed...)}
}

func (s *MemoryStore) Load(context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, ErrNotConfigured
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}
