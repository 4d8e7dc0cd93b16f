package store

import (
	"sync"
	"time"

	"github.com/brandhub-ma/securecore"
)

// DefaultCleanupInterval is how often a MemoryStore sweeps expired logs.
const DefaultCleanupInterval = time.Minute

// MemoryStore keeps attempt logs in a map. A background sweep drops logs
// whose TTL has passed so idle keys do not accumulate.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	maxEntries int
	maxKeySize int
	clock      securecore.Clock

	done      chan struct{}
	closeOnce sync.Once
}

// MemoryStoreConfig holds configuration for MemoryStore.
type MemoryStoreConfig struct {
	// CleanupInterval is the period of the expiry sweep.
	// Default is DefaultCleanupInterval.
	CleanupInterval time.Duration

	// MaxEntries caps the number of keys. Zero means unbounded, which is
	// the right choice for limiter logs: each one expires after at most its
	// window, and a cap makes new keys fail once live logs fill it.
	MaxEntries int

	// MaxKeySize is the longest accepted key. Default is DefaultMaxKeySize.
	MaxKeySize int

	// Clock drives expiry. Default is the wall clock.
	Clock securecore.Clock
}

// DefaultMemoryStoreConfig returns the configuration used by NewMemoryStore.
func DefaultMemoryStoreConfig() MemoryStoreConfig {
	return MemoryStoreConfig{
		CleanupInterval: DefaultCleanupInterval,
		MaxKeySize:      DefaultMaxKeySize,
		Clock:           securecore.SystemClock,
	}
}

// NewMemoryStore creates an unbounded store sweeping once a minute.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(DefaultMemoryStoreConfig())
}

// NewMemoryStoreWithConfig creates a store and starts its sweep.
// Zero fields take their defaults.
func NewMemoryStoreWithConfig(config MemoryStoreConfig) *MemoryStore {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.MaxKeySize <= 0 {
		config.MaxKeySize = DefaultMaxKeySize
	}
	if config.Clock == nil {
		config.Clock = securecore.SystemClock
	}

	s := &MemoryStore{
		entries:    make(map[string]Entry),
		maxEntries: config.MaxEntries,
		maxKeySize: config.MaxKeySize,
		clock:      config.Clock,
		done:       make(chan struct{}),
	}
	go s.sweep(config.CleanupInterval)

	return s
}

// Get returns the live value for key.
func (s *MemoryStore) Get(key string) (interface{}, bool) {
	if len(key) > s.maxKeySize {
		return nil, false
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || entry.IsExpiredAt(s.clock()) {
		return nil, false
	}
	return entry.Value, true
}

// Set replaces the value for key. When the store is at MaxEntries, a new key
// is admitted only if expired logs can be dropped to make room.
func (s *MemoryStore) Set(key string, value interface{}, ttl time.Duration) error {
	if len(key) > s.maxKeySize {
		return ErrKeyTooLong
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full(key) {
		s.dropExpired(now)
		if s.full(key) {
			return ErrStoreFull
		}
	}

	s.entries[key] = newEntry(value, ttl, now)
	return nil
}

// Delete drops key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweep. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clock returns the clock the store expires entries by.
func (s *MemoryStore) Clock() securecore.Clock {
	return s.clock
}

// full reports whether storing key would exceed MaxEntries.
// Caller holds s.mu.
func (s *MemoryStore) full(key string) bool {
	if s.maxEntries <= 0 {
		return false
	}
	if _, exists := s.entries[key]; exists {
		return false
	}
	return len(s.entries) >= s.maxEntries
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.clock()
			s.mu.Lock()
			s.dropExpired(now)
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// dropExpired deletes every entry expired at now. Caller holds s.mu.
func (s *MemoryStore) dropExpired(now time.Time) {
	for key, entry := range s.entries {
		if entry.IsExpiredAt(now) {
			delete(s.entries, key)
		}
	}
}
