package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis.
const DefaultRedisPrefix = "unitrack"

// RedisStore keeps the record under <prefix>:<key> in Redis.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL expires the record after ttl unless rewritten.
// The refresh token's own lifetime is a sensible value.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(r *RedisStore) {
		r.ttl = ttl
	}
}

// NewRedisStore returns a store writing prefix:key into client.
func NewRedisStore(client redis.UniversalClient, prefix, key string, opts ...RedisStoreOption) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if key == "" {
		key = domain.DefaultStorageKey
	}
	r := &RedisStore{client: client, key: prefix + ":" + key}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the full Redis key.
func (r *RedisStore) Key() string {
	return r.key
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*domain.PersistedRecord, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return domain.UnmarshalRecord(data)
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, rec *domain.PersistedRecord) error {
	data, err := domain.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}
