package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSlotEmpty(t *testing.T) {
	slot := NewSlot[int](time.Minute)
	if got, ok := slot.Get(); ok {
		t.Fatalf("expected empty slot, got %d", got)
	}
}

func TestSlotSetGet(t *testing.T) {
	slot := NewSlot[[]string](time.Minute)
	slot.Set([]string{"a", "b"})

	got, ok := slot.Get()
	if !ok || len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected value: %v ok=%v", got, ok)
	}
}

func TestSlotExpiry(t *testing.T) {
	slot := NewSlot[int](10 * time.Millisecond)
	slot.Set(42)

	if _, ok := slot.Get(); !ok {
		t.Fatalf("expected value before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if got, ok := slot.Get(); ok {
		t.Fatalf("expected expiry, got %d", got)
	}
}

func TestSlotInvalidate(t *testing.T) {
	slot := NewSlot[int](time.Minute)
	slot.Set(7)
	slot.Invalidate()
	if got, ok := slot.Get(); ok {
		t.Fatalf("expected empty after invalidate, got %d", got)
	}

	// Refill works after invalidation.
	slot.Set(8)
	if got, ok := slot.Get(); !ok || got != 8 {
		t.Fatalf("expected 8 after refill, got %d ok=%v", got, ok)
	}
}

func TestSlotDefaultTTL(t *testing.T) {
	slot := NewSlot[int](0)
	if slot.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", slot.ttl)
	}
}

func TestSlotLastWriterWins(t *testing.T) {
	slot := NewSlot[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			slot.Set(v)
		}(i)
	}
	wg.Wait()

	if _, ok := slot.Get(); !ok {
		t.Fatalf("expected a value after concurrent writes")
	}
}
