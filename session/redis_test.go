package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brandhub-ma/securecore/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRedisStore_SetGetRemove(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, WithSessionID("tab-1"), WithLogger(zaptest.NewLogger(t)))

	_, ok := s.Get("csrf_token")
	assert.False(t, ok)

	require.NoError(t, s.Set("csrf_token", "abc"))
	v, ok := s.Get("csrf_token")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	stored, err := mr.Get("session:tab-1:csrf_token")
	require.NoError(t, err)
	assert.Equal(t, "abc", stored)

	require.NoError(t, s.Remove("csrf_token"))
	require.NoError(t, s.Remove("csrf_token"))
	_, ok = s.Get("csrf_token")
	assert.False(t, ok)
}

func TestRedisStore_GeneratesSessionID(t *testing.T) {
	_, client := newTestRedis(t)

	a := NewRedisStore(client)
	b := NewRedisStore(client)

	assert.NotEmpty(t, a.SessionID())
	assert.NotEqual(t, a.SessionID(), b.SessionID())

	require.NoError(t, a.Set("k", "from-a"))
	_, ok := b.Get("k")
	assert.False(t, ok, "sessions must not share values")
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, WithSessionID("tab-ttl"), WithTTL(time.Hour))

	require.NoError(t, s.Set("k", "v"))
	assert.Equal(t, time.Hour, mr.TTL("session:tab-ttl:k"))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.Set("k", "v2"), "writes refresh the session lifetime")
	assert.Equal(t, time.Hour, mr.TTL("session:tab-ttl:k"))

	mr.FastForward(time.Hour)
	_, ok := s.Get("k")
	assert.False(t, ok, "an idle session expires")
}

func TestRedisStore_Clear(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisStore(client, WithSessionID("tab-clear"))
	other := NewRedisStore(client, WithSessionID("tab-other"))

	require.NoError(t, s.Set("csrf_token", "a"))
	require.NoError(t, s.Set("csrf_token_expiry", "1"))
	require.NoError(t, other.Set("csrf_token", "b"))

	require.NoError(t, s.Clear(context.Background()))

	_, ok := s.Get("csrf_token")
	assert.False(t, ok)
	_, ok = s.Get("csrf_token_expiry")
	assert.False(t, ok)

	v, ok := other.Get("csrf_token")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	require.NoError(t, s.Clear(context.Background()), "clearing an empty session is a no-op")
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	m := metrics.New(prometheus.NewRegistry())
	s := NewRedisStore(client,
		WithSessionID("tab-down"),
		WithTimeout(200*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(m),
	)

	mr.Close()

	_, ok := s.Get("csrf_token")
	assert.False(t, ok, "read failures are reported as absent")
	assert.Error(t, s.Set("csrf_token", "v"))
	assert.Error(t, s.Remove("csrf_token"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStoreErrors.WithLabelValues("redis", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStoreErrors.WithLabelValues("redis", "set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStoreErrors.WithLabelValues("redis", "remove")))
}
