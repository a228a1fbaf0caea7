package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "accountplan:artifact:"

// RedisStore keeps the artifacts of a session in one Redis hash whose TTL is
// refreshed on every save.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A non-positive ttl keeps artifacts
// until they are deleted.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sessionID, name string, data []byte) error {
	key := keyPrefix + sessionID
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, name, data)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save artifact %s/%s: %w", sessionID, name, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, sessionID, name string) ([]byte, error) {
	data, err := s.client.HGet(ctx, keyPrefix+sessionID, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s/%s: %w", sessionID, name, err)
	}
	return data, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, sessionID string) ([]string, error) {
	names, err := s.client.HKeys(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("list artifacts %s: %w", sessionID, err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID, name string) error {
	n, err := s.client.HDel(ctx, keyPrefix+sessionID, name).Result()
	if err != nil {
		return fmt.Errorf("delete artifact %s/%s: %w", sessionID, name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
