package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// pendingMarker is stored under a key while its request is in progress.
const pendingMarker = "pending"

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore. Keys are stored
// under prefix.
func NewIdempotencyStore(client redis.UniversalClient, prefix string) *IdempotencyStore {
	if prefix == "" {
		prefix = "accounter:idempotency:"
	}
	return &IdempotencyStore{
		client: client,
		prefix: prefix,
	}
}

// Reserve claims key with SET NX. A nil response with nil error means the
// caller now owns the key.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*usecase.IdempotentResponse, error) {
	fullKey := s.prefix + key

	ok, err := s.client.SetNX(ctx, fullKey, pendingMarker, ttl).Result()
	if err != nil {
		return nil, domain.NewStorageError("reserve idempotency key", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Released or expired between the two calls.
		return s.Reserve(ctx, key, ttl)
	}
	if err != nil {
		return nil, domain.NewStorageError("read idempotency key", err)
	}
	if string(raw) == pendingMarker {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestInFlight, key)
	}

	var resp usecase.IdempotentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response for %s: %w", key, err)
	}

	return &resp, nil
}

// Complete stores the final response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response for %s: %w", key, err)
	}

	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return domain.NewStorageError("complete idempotency key", err)
	}
	return nil
}

// Release deletes the reservation for key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return domain.NewStorageError("release idempotency key", err)
	}
	return nil
}
