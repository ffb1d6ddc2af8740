// Package cache wraps Redis with JSON helpers and the key layout shared by grading and analytics.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/observability"
)

const scanBatch = 200

// Store is a cache-aside helper. A nil Store or one without a client behaves as an
// always-empty cache so services work without Redis.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// New builds a store over client.
func New(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With().Str("component", "cache_store").Logger(),
	}
}

func (s *Store) enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON decodes the value at key into dest. It reports false on a miss. Read and
// decode failures are logged and treated as misses; scope labels the metric.
func (s *Store) GetJSON(ctx context.Context, scope, key string, dest interface{}) bool {
	if !s.enabled() {
		return false
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
			observability.CacheLookups().WithLabelValues(scope, "error").Inc()
			return false
		}
		observability.CacheLookups().WithLabelValues(scope, "miss").Inc()
		return false
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		observability.CacheLookups().WithLabelValues(scope, "error").Inc()
		return false
	}

	observability.CacheLookups().WithLabelValues(scope, "hit").Inc()
	return true
}

// SetJSON stores value at key for ttl.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes exact keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if !s.enabled() || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching a glob pattern using SCAN, and returns
// how many keys were deleted.
func (s *Store) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if !s.enabled() {
		return 0, nil
	}

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			removed, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %s: %w", pattern, err)
			}
			deleted += int(removed)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
