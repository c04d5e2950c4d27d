// Package cache is a Redis-backed response cache for Graph API GET
// bodies. Reports over a fixed interval are repeatable for minutes at a
// time, so a short TTL trades a little staleness for a lot of rate
// budget. Cache failures never fail a request; the caller just pays for
// the fetch.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stratdash/meta-insights/pkg/logging"
)

// DefaultTTL is how long a cached response body stays valid.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "insights:"

// Store memoizes response bodies in Redis. It satisfies the graph
// package's ResponseCache interface.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a response cache on the given Redis client. A
// non-positive ttl falls back to DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("cache"),
	}
}

// Get returns the cached body for key, or ok=false on a miss. Redis
// errors count as misses.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	body, err := s.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			cacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		} else {
			cacheMisses.Inc()
		}
		return nil, false
	}

	cacheHits.Inc()
	cacheSize.Add(float64(len(body)))
	return body, true
}

// Set stores a response body under key for the configured TTL.
func (s *Store) Set(ctx context.Context, key string, body json.RawMessage) {
	if err := s.redis.Set(ctx, keyPrefix+key, body, s.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	cacheSize.Add(float64(len(body)))
}

// Delete removes a cached body. Used by tests and manual invalidation.
func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
	}
}
