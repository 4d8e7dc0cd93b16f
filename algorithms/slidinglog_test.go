package algorithms

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brandhub-ma/securecore/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLog(t *testing.T) (*SlidingLog, *testClock, *store.MemoryStore) {
	t.Helper()
	clock := newTestClock()
	s := store.NewMemoryStoreWithConfig(store.MemoryStoreConfig{Clock: clock.Now})
	t.Cleanup(func() { s.Close() })
	return NewSlidingLog(s, WithClock(clock.Now)), clock, s
}

func storedAttempts(t *testing.T, s store.Store, key string) []time.Time {
	t.Helper()
	val, ok := s.Get("log:" + key)
	if !ok {
		return nil
	}
	return val.([]time.Time)
}

func TestSlidingLog_AllowsUpToMax(t *testing.T) {
	sl, _, _ := newTestLog(t)

	for i := 0; i < 10; i++ {
		if !sl.Check("test", 10, time.Second) {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
	}

	if sl.Check("test", 10, time.Second) {
		t.Error("11th attempt should be rejected")
	}
}

func TestSlidingLog_WindowExpiry(t *testing.T) {
	sl, clock, _ := newTestLog(t)

	if !sl.Check("x", 2, time.Second) || !sl.Check("x", 2, time.Second) {
		t.Fatal("First two attempts should be allowed")
	}
	if sl.Check("x", 2, time.Second) {
		t.Fatal("Third attempt should be rejected")
	}

	clock.Advance(1100 * time.Millisecond)

	if !sl.Check("x", 2, time.Second) {
		t.Error("Attempt after the window should be allowed")
	}
}

func TestSlidingLog_WindowExpiryRealClock(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	sl := NewSlidingLog(s)

	sl.Check("test-key", 1, 100*time.Millisecond)
	if sl.Check("test-key", 1, 100*time.Millisecond) {
		t.Fatal("Second attempt within window should be rejected")
	}

	time.Sleep(150 * time.Millisecond)

	if !sl.Check("test-key", 1, 100*time.Millisecond) {
		t.Error("Attempt should be allowed after window expires")
	}
}

func TestSlidingLog_SlidesPerAttempt(t *testing.T) {
	sl, clock, _ := newTestLog(t)
	window := 10 * time.Second

	sl.Check("k", 2, window) // t=0
	clock.Advance(6 * time.Second)
	sl.Check("k", 2, window) // t=6

	clock.Advance(3 * time.Second) // t=9
	if sl.Check("k", 2, window) {
		t.Fatal("Both attempts are still inside the window")
	}

	clock.Advance(time.Second) // t=10: first attempt leaves
	if !sl.Check("k", 2, window) {
		t.Fatal("One slot should free up when the oldest attempt leaves")
	}
	if sl.Check("k", 2, window) {
		t.Error("Attempt at t=6 still occupies the other slot")
	}
}

func TestSlidingLog_DeniedAttemptsAreNotRecorded(t *testing.T) {
	sl, clock, s := newTestLog(t)
	window := time.Minute

	for i := 0; i < 3; i++ {
		sl.Check("form", 3, window)
	}

	// Hammer the limiter while blocked.
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		if sl.Check("form", 3, window) {
			t.Fatalf("Attempt %d while blocked should be rejected", i)
		}
	}

	if got := len(storedAttempts(t, s, "form")); got != 3 {
		t.Errorf("Expected 3 stored attempts, got %d", got)
	}

	// Blocked attempts must not extend the block past the natural expiry.
	clock.Advance(10 * time.Second) // t=60
	if !sl.Check("form", 3, window) {
		t.Error("Attempt should be allowed once the first attempts leave the window")
	}
}

func TestSlidingLog_StoredLogIsBounded(t *testing.T) {
	sl, _, s := newTestLog(t)

	for i := 0; i < 5; i++ {
		sl.Check("k", 5, time.Hour)
	}
	// Tighter policy on the same key trims the stored log.
	if sl.Check("k", 2, time.Hour) {
		t.Fatal("Attempt should be rejected under the tighter policy")
	}
	if got := len(storedAttempts(t, s, "k")); got != 2 {
		t.Errorf("Expected stored log trimmed to 2, got %d", got)
	}
}

func TestSlidingLog_KeyIndependence(t *testing.T) {
	sl, _, _ := newTestLog(t)

	sl.Check("key1", 1, time.Second)
	if sl.Check("key1", 1, time.Second) {
		t.Error("key1 should be rejected")
	}
	if !sl.Check("key2", 1, time.Second) {
		t.Error("key2 should be allowed")
	}
}

func TestSlidingLog_Reset(t *testing.T) {
	sl, _, _ := newTestLog(t)

	sl.Check("test-key", 1, time.Second)
	if sl.Check("test-key", 1, time.Second) {
		t.Fatal("Should be rejected before reset")
	}

	sl.Reset("test-key")

	if !sl.Check("test-key", 1, time.Second) {
		t.Error("Should be allowed after reset")
	}

	// Reset of an unknown key is a no-op.
	sl.Reset("unknown")
}

func TestSlidingLog_InvalidParametersDeny(t *testing.T) {
	sl, _, s := newTestLog(t)

	tests := []struct {
		name   string
		max    int
		window time.Duration
	}{
		{"zero max", 0, time.Second},
		{"negative max", -1, time.Second},
		{"zero window", 5, 0},
		{"negative window", 5, -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sl.Check("k", tt.max, tt.window) {
				t.Error("Invalid parameters should always deny")
			}
			if sl.Remaining("k", tt.max, tt.window) != 0 {
				t.Error("Remaining should be 0 for invalid parameters")
			}
		})
	}

	if storedAttempts(t, s, "k") != nil {
		t.Error("Invalid parameters should not touch state")
	}
}

// An explicit capacity cap fails secure: a new key that cannot be recorded
// is denied rather than admitted unrecorded.
func TestSlidingLog_StoreFullFailsSecure(t *testing.T) {
	clock := newTestClock()
	s := store.NewMemoryStoreWithConfig(store.MemoryStoreConfig{MaxEntries: 1, Clock: clock.Now})
	defer s.Close()
	sl := NewSlidingLog(s, WithClock(clock.Now))

	if !sl.Check("first", 5, time.Minute) {
		t.Fatal("First key should be allowed")
	}
	if sl.Check("second", 5, time.Minute) {
		t.Error("Check should deny when the store cannot record the attempt")
	}
}

func TestSlidingLog_RemainingAndRetryAfter(t *testing.T) {
	sl, clock, _ := newTestLog(t)
	window := time.Minute

	if got := sl.Remaining("k", 3, window); got != 3 {
		t.Errorf("Expected 3 remaining, got %d", got)
	}
	if got := sl.RetryAfter("k", 3, window); got != 0 {
		t.Errorf("Expected no wait, got %v", got)
	}

	sl.Check("k", 3, window)
	clock.Advance(20 * time.Second)
	sl.Check("k", 3, window)
	sl.Check("k", 3, window)

	if got := sl.Remaining("k", 3, window); got != 0 {
		t.Errorf("Expected 0 remaining, got %d", got)
	}
	if got := sl.RetryAfter("k", 3, window); got != 40*time.Second {
		t.Errorf("Expected 40s wait, got %v", got)
	}

	// Neither query records an attempt.
	clock.Advance(40 * time.Second)
	if got := sl.Remaining("k", 3, window); got != 1 {
		t.Errorf("Expected 1 remaining, got %d", got)
	}
}

func TestSlidingLog_Concurrent(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	sl := NewSlidingLog(s)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sl.Check("shared", 25, time.Minute) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 25 {
		t.Errorf("Expected exactly 25 allowed attempts, got %d", allowed)
	}
}

func TestSlidingLog_LRUStoreKeepsBlockedKeys(t *testing.T) {
	clock := newTestClock()
	s, err := store.NewLRUStoreWithConfig(store.LRUStoreConfig{Size: 2, Clock: clock.Now})
	if err != nil {
		t.Fatalf("NewLRUStoreWithConfig failed: %v", err)
	}
	defer s.Close()
	sl := NewSlidingLog(s)

	if !sl.Check("a", 1, time.Hour) {
		t.Fatal("a#1 should be allowed")
	}
	if sl.Check("a", 1, time.Hour) {
		t.Fatal("a#2 should be rejected")
	}

	// Traffic on other keys must not push a's log out of the store.
	sl.Check("b", 1, time.Hour)
	sl.Check("c", 1, time.Hour)

	if sl.Check("a", 1, time.Hour) {
		t.Error("a#3 should still be rejected")
	}
	if s.Len() != 2 {
		t.Errorf("Expected LRU store bounded at 2 keys, got %d", s.Len())
	}

	// Once logs expire their slots are reused.
	clock.Advance(time.Hour)
	for i := 0; i < 2; i++ {
		key := fmt.Sprintf("visitor-%d", i)
		if !sl.Check(key, 1, time.Hour) {
			t.Errorf("%s should be allowed after the old logs expired", key)
		}
	}
}

func TestSlidingLog_UsesStoreClock(t *testing.T) {
	clock := newTestClock()
	s := store.NewMemoryStoreWithConfig(store.MemoryStoreConfig{Clock: clock.Now})
	defer s.Close()
	sl := NewSlidingLog(s)

	sl.Check("k", 1, time.Minute)
	if sl.Check("k", 1, time.Minute) {
		t.Fatal("Second attempt should be rejected")
	}

	clock.Advance(time.Minute)
	if !sl.Check("k", 1, time.Minute) {
		t.Error("Limiter should follow the store's clock")
	}
}

func TestSlidingLog_SharedClockOutlivesRealTime(t *testing.T) {
	sl, _, _ := newTestLog(t)

	sl.Check("k", 1, 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// The clock stood still, so the log must still be there.
	if sl.Check("k", 1, 20*time.Millisecond) {
		t.Error("Log should not expire by wall time when the clock is stopped")
	}
}

func TestSlidingLog_LongKeys(t *testing.T) {
	sl, _, s := newTestLog(t)

	long := strings.Repeat("x", 1<<20)
	other := long[:len(long)-1] + "y"

	if !sl.Check(long, 1, time.Hour) {
		t.Fatal("A long key should be allowed on its first attempt")
	}
	if sl.Check(long, 1, time.Hour) {
		t.Error("A long key should be limited like any other key")
	}
	if !sl.Check(other, 1, time.Hour) {
		t.Error("Long keys differing in one byte are independent")
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 stored logs, got %d", s.Len())
	}

	sl.Reset(long)
	if !sl.Check(long, 1, time.Hour) {
		t.Error("Reset should clear a long key")
	}

	boundary := strings.Repeat("b", maxPlainKeyLen)
	if got := sl.storeKey(boundary); got != logPrefix+boundary {
		t.Errorf("Key of %d bytes should be stored by name, got %q", maxPlainKeyLen, got)
	}
}
