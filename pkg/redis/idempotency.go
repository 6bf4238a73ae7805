package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore guards a request key with SET NX so a retried request is
// recognised while the first one is in flight or after it succeeded.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration, prefix string) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl, prefix: prefix}
}

func (s *IdempotencyStore) key(scope uint, requestKey string) string {
	return fmt.Sprintf("idempotency:%s:%d:%s", s.prefix, scope, requestKey)
}

// Acquire returns false if the key was already taken.
func (s *IdempotencyStore) Acquire(ctx context.Context, scope uint, requestKey string) (bool, error) {
	return s.client.SetNX(ctx, s.key(scope, requestKey), "1", s.ttl).Result()
}

// Release frees the key so a failed request may be retried.
func (s *IdempotencyStore) Release(ctx context.Context, scope uint, requestKey string) error {
	return s.client.Del(ctx, s.key(scope, requestKey)).Err()
}
