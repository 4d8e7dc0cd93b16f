// Package algorithms implements attempt limiting algorithms.
package algorithms

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/brandhub-ma/securecore"
	"github.com/brandhub-ma/securecore/store"
)

// SlidingLog implements the sliding window algorithm as an exact log of
// permitted attempt timestamps per key.
//
// Denied attempts are never recorded: a key blocked by its policy is
// unblocked as soon as its oldest counted attempt leaves the window, and the
// stored log never holds more than maxAttempts timestamps.
type SlidingLog struct {
	store store.Store
	clock securecore.Clock
	mu    [shardCount]paddedMutex
}

var _ securecore.Limiter = (*SlidingLog)(nil)

const (
	logPrefix    = "log:"
	hashedPrefix = "log#sha256:"

	// maxPlainKeyLen is the longest key stored under its own name. Longer
	// keys are stored under their SHA-256 so any key fits any store.
	maxPlainKeyLen = 256
)

// Option configures a SlidingLog.
type Option func(*SlidingLog)

// WithClock sets the clock used to timestamp attempts. The store expires
// logs by its own clock, so both must read the same time. Stores that
// implement store.Clocked already lend their clock to the limiter; prefer
// configuring the clock there.
func WithClock(clock securecore.Clock) Option {
	return func(sl *SlidingLog) {
		if clock != nil {
			sl.clock = clock
		}
	}
}

// NewSlidingLog creates a sliding log limiter keeping its logs in s. The
// limiter uses the store's clock when s implements store.Clocked.
func NewSlidingLog(s store.Store, opts ...Option) *SlidingLog {
	sl := &SlidingLog{
		store: s,
		clock: securecore.SystemClock,
	}
	if c, ok := s.(store.Clocked); ok && c.Clock() != nil {
		sl.clock = c.Clock()
	}
	for _, opt := range opts {
		opt(sl)
	}
	return sl
}

// Check records an attempt for key and reports whether it is within
// maxAttempts per window. Non-positive maxAttempts or window always deny.
// If the store refuses the write the attempt is denied.
func (sl *SlidingLog) Check(key string, maxAttempts int, window time.Duration) bool {
	if maxAttempts <= 0 || window <= 0 {
		return false
	}

	mu := sl.getLock(key)
	mu.Lock()
	defer mu.Unlock()

	now := sl.clock()
	attempts := sl.recent(key, window, now)

	if len(attempts) >= maxAttempts {
		// Keep only the newest maxAttempts; they alone decide when a slot frees up.
		attempts = attempts[len(attempts)-maxAttempts:]
		_ = sl.save(key, attempts, window, now)
		return false
	}

	attempts = append(attempts, now)
	return sl.save(key, attempts, window, now) == nil
}

// Reset clears every recorded attempt for key.
func (sl *SlidingLog) Reset(key string) {
	mu := sl.getLock(key)
	mu.Lock()
	defer mu.Unlock()

	_ = sl.store.Delete(sl.storeKey(key))
}

// Remaining returns how many attempts key may still make in the current window.
func (sl *SlidingLog) Remaining(key string, maxAttempts int, window time.Duration) int {
	if maxAttempts <= 0 || window <= 0 {
		return 0
	}

	mu := sl.getLock(key)
	mu.Lock()
	defer mu.Unlock()

	remaining := maxAttempts - len(sl.recent(key, window, sl.clock()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns how long key must wait before its next attempt can be
// permitted. It is zero when an attempt would be permitted now.
func (sl *SlidingLog) RetryAfter(key string, maxAttempts int, window time.Duration) time.Duration {
	if maxAttempts <= 0 || window <= 0 {
		return 0
	}

	mu := sl.getLock(key)
	mu.Lock()
	defer mu.Unlock()

	now := sl.clock()
	attempts := sl.recent(key, window, now)
	if len(attempts) < maxAttempts {
		return 0
	}

	blocking := attempts[len(attempts)-maxAttempts]
	return blocking.Add(window).Sub(now)
}

// recent returns the attempts for key that are still inside the window,
// oldest first. The returned slice is a fresh copy.
func (sl *SlidingLog) recent(key string, window time.Duration, now time.Time) []time.Time {
	val, ok := sl.store.Get(sl.storeKey(key))
	if !ok {
		return nil
	}
	stored, ok := val.([]time.Time)
	if !ok {
		return nil
	}

	kept := make([]time.Time, 0, len(stored)+1)
	for _, t := range stored {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}

// save persists the log until its newest attempt leaves the window.
func (sl *SlidingLog) save(key string, attempts []time.Time, window time.Duration, now time.Time) error {
	storeKey := sl.storeKey(key)
	if len(attempts) == 0 {
		return sl.store.Delete(storeKey)
	}

	ttl := attempts[len(attempts)-1].Add(window).Sub(now)
	if ttl <= 0 {
		return sl.store.Delete(storeKey)
	}
	return sl.store.Set(storeKey, attempts, ttl)
}

// storeKey generates the storage key for an attempt log.
func (sl *SlidingLog) storeKey(key string) string {
	if len(key) <= maxPlainKeyLen {
		return logPrefix + key
	}
	sum := sha256.Sum256([]byte(key))
	return hashedPrefix + hex.EncodeToString(sum[:])
}

// getLock returns the mutex for the given key based on a hash.
func (sl *SlidingLog) getLock(key string) *sync.Mutex {
	idx := fnv32a(key) % shardCount
	return &sl.mu[idx].Mutex
}
