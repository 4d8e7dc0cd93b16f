package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brandhub-ma/securecore"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize is the number of keys an LRUStore keeps unless configured otherwise.
const DefaultLRUSize = 10000

// LRUStore is a bounded Store. When full, expired entries are reclaimed
// least recently used first. A live entry is never evicted to make room:
// the write of a new key fails with ErrStoreFull instead, so dropping one
// key's log can never reopen that key's limit.
type LRUStore struct {
	cache      *lru.Cache[string, Entry]
	size       int
	maxKeySize int
	clock      securecore.Clock
	evictions  atomic.Int64

	// mu serializes writers so the capacity check and the insert are atomic.
	mu sync.Mutex
}

// LRUStoreConfig holds configuration for LRUStore.
type LRUStoreConfig struct {
	// Size is the maximum number of keys. Default is DefaultLRUSize.
	Size int

	// MaxKeySize is the longest accepted key. Default is DefaultMaxKeySize.
	MaxKeySize int

	// Clock drives expiry. Default is the wall clock.
	Clock securecore.Clock
}

// NewLRUStore creates a bounded store holding at most size keys.
func NewLRUStore(size int) (*LRUStore, error) {
	return NewLRUStoreWithConfig(LRUStoreConfig{Size: size})
}

// NewLRUStoreWithConfig creates a bounded store with custom configuration.
func NewLRUStoreWithConfig(config LRUStoreConfig) (*LRUStore, error) {
	if config.Size <= 0 {
		config.Size = DefaultLRUSize
	}
	if config.MaxKeySize <= 0 {
		config.MaxKeySize = DefaultMaxKeySize
	}
	if config.Clock == nil {
		config.Clock = securecore.SystemClock
	}

	s := &LRUStore{
		size:       config.Size,
		maxKeySize: config.MaxKeySize,
		clock:      config.Clock,
	}

	cache, err := lru.NewWithEvict[string, Entry](config.Size, func(string, Entry) {
		s.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache

	return s, nil
}

// Get retrieves a value from the store. Expired entries are dropped on read.
func (s *LRUStore) Get(key string) (interface{}, bool) {
	if len(key) > s.maxKeySize {
		return nil, false
	}

	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	if entry.IsExpiredAt(s.clock()) {
		s.cache.Remove(key)
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value with an optional TTL. A new key is refused with
// ErrStoreFull when every slot holds a live entry.
func (s *LRUStore) Set(key string, value interface{}, ttl time.Duration) error {
	if len(key) > s.maxKeySize {
		return ErrKeyTooLong
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Contains(key) && s.cache.Len() >= s.size {
		if !s.reclaimOne(now) {
			return ErrStoreFull
		}
	}

	s.cache.Add(key, newEntry(value, ttl, now))
	return nil
}

// Delete removes a value from the store.
func (s *LRUStore) Delete(key string) error {
	s.cache.Remove(key)
	return nil
}

// Close drops every entry.
func (s *LRUStore) Close() error {
	s.cache.Purge()
	return nil
}

// Len returns the number of entries in the store (including expired ones).
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// Clock returns the clock the store expires entries by.
func (s *LRUStore) Clock() securecore.Clock {
	return s.clock
}

// Evictions returns how many entries left the cache, whether reclaimed
// after expiry, dropped on read, deleted or purged by Close.
func (s *LRUStore) Evictions() int64 {
	return s.evictions.Load()
}

// reclaimOne removes the least recently used expired entry. It reports
// false when every entry is live. Caller holds s.mu.
func (s *LRUStore) reclaimOne(now time.Time) bool {
	for _, key := range s.cache.Keys() {
		entry, ok := s.cache.Peek(key)
		if !ok || entry.IsExpiredAt(now) {
			s.cache.Remove(key)
			return true
		}
	}
	return false
}
