// Package cache provides a single-slot, time-bounded cache used to amortize
// bulk decryption of the connection set. The slot is advisory: it may be
// stale by up to its TTL until the next invalidating mutation, and it can be
// discarded and rebuilt at any time without data loss.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a populated slot is served without refresh.
const DefaultTTL = 5 * time.Minute

// Slot is a mutex-guarded single-entry cache with TTL expiry.
type Slot[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	value     T
	expiresAt time.Time
	valid     bool
}

// NewSlot constructs a Slot. A non-positive ttl falls back to DefaultTTL.
func NewSlot[T any](ttl time.Duration) *Slot[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Slot[T]{ttl: ttl}
}

// Get returns the cached value when present and unexpired.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid || time.Now().After(s.expiresAt) {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Set stores a value and restarts the TTL window. Concurrent populators are
// tolerated; the last writer wins.
func (s *Slot[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.expiresAt = time.Now().Add(s.ttl)
	s.valid = true
	s.mu.Unlock()
}

// Invalidate drops the cached value immediately.
func (s *Slot[T]) Invalidate() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.valid = false
	s.mu.Unlock()
}
