// Package store provides storage backends for per-key attempt logs.
package store

import (
	"errors"
	"time"

	"github.com/brandhub-ma/securecore"
)

var (
	// ErrStoreFull is returned when a bounded store has no room for a new key.
	ErrStoreFull = errors.New("store: capacity exceeded")

	// ErrKeyTooLong is returned when a key is longer than the store accepts.
	ErrKeyTooLong = errors.New("store: key too long")
)

// DefaultMaxKeySize is the longest key a store accepts unless configured otherwise.
const DefaultMaxKeySize = 4096

// Store holds one attempt log per limiter key. Implementations must be safe
// for concurrent use; the limiter serializes writers of the same key itself.
type Store interface {
	// Get returns the live value for key. Expired values are reported absent.
	Get(key string) (interface{}, bool)

	// Set replaces the value for key. A ttl of zero keeps it until deleted.
	Set(key string, value interface{}, ttl time.Duration) error

	// Delete drops key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close stops background work and releases the entries.
	Close() error
}

// Clocked is implemented by stores that expire entries by an injected
// clock. A limiter built on such a store times attempts by the same clock.
type Clocked interface {
	Clock() securecore.Clock
}

// Entry is a value and the instant it stops being visible.
// A zero ExpiresAt never expires.
type Entry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// IsExpired reports whether e has expired by the wall clock.
func (e Entry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether e has expired at now. An entry expires at
// ExpiresAt itself, not after it.
func (e Entry) IsExpiredAt(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

func newEntry(value interface{}, ttl time.Duration, now time.Time) Entry {
	entry := Entry{
		Value: value,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	return entry
}
