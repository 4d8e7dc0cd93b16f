package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brandhub-ma/securecore/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisTTL is how long an idle session's values live in Redis.
const DefaultRedisTTL = 24 * time.Hour

// DefaultRedisTimeout bounds each Redis round trip.
const DefaultRedisTimeout = 2 * time.Second

const backendRedis = "redis"

// RedisStore keeps one session's values in Redis under
// "session:<id>:<key>". Every write refreshes the value's TTL so the session
// ends after DefaultRedisTTL (or the configured TTL) of inactivity.
type RedisStore struct {
	client    redis.UniversalClient
	sessionID string
	ttl       time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithSessionID binds the store to an existing session.
func WithSessionID(id string) RedisOption {
	return func(s *RedisStore) {
		s.sessionID = id
	}
}

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithTimeout sets the per-operation timeout.
func WithTimeout(timeout time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.timeout = timeout
	}
}

// WithLogger sets the logger used for read failures.
func WithLogger(logger *zap.Logger) RedisOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors used to count failures.
func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// NewRedisStore creates a session store on client. Without WithSessionID a
// new random session id is generated.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		ttl:     DefaultRedisTTL,
		timeout: DefaultRedisTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultRedisTTL
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRedisTimeout
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SessionID returns the id of the session this store is bound to.
func (s *RedisStore) SessionID() string {
	return s.sessionID
}

// Get returns the value for key. Redis failures are logged and reported as
// an absent key.
func (s *RedisStore) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false
		}
		s.logger.Warn("session store read failed",
			zap.String("session_id", s.sessionID),
			zap.String("key", key),
			zap.Error(err))
		s.metrics.ObserveStoreError(backendRedis, "get")
		return "", false
	}
	return val, true
}

// Set stores value under key and refreshes its TTL.
func (s *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.redisKey(key), value, s.ttl).Err(); err != nil {
		s.metrics.ObserveStoreError(backendRedis, "set")
		return fmt.Errorf("session: set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *RedisStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		s.metrics.ObserveStoreError(backendRedis, "remove")
		return fmt.Errorf("session: remove %s: %w", key, err)
	}
	return nil
}

// Clear deletes every value of the session, ending it.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.redisKey("*"), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.metrics.ObserveStoreError(backendRedis, "clear")
		return fmt.Errorf("session: scan %s: %w", s.sessionID, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.metrics.ObserveStoreError(backendRedis, "clear")
		return fmt.Errorf("session: clear %s: %w", s.sessionID, err)
	}
	return nil
}

func (s *RedisStore) redisKey(key string) string {
	return "session:" + s.sessionID + ":" + key
}
