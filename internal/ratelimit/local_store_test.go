package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalWindowStore_SequentialCounts(t *testing.T) {
	store := NewLocalWindowStore()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		count, err := store.Increment(ctx, "client-a", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error on increment %d: %v", i, err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	// Separate keys count independently
	count, err := store.Increment(ctx, "client-b", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh key to start at 1, got %d", count)
	}
}

func TestLocalWindowStore_WindowReset(t *testing.T) {
	store := NewLocalWindowStore()
	ctx := context.Background()

	now := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := store.Increment(ctx, "client", time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Advance past the window boundary; the next increment restarts at 1
	now = now.Add(2 * time.Minute)

	count, err := store.Increment(ctx, "client", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count to reset to 1 after window, got %d", count)
	}
}

func TestLocalWindowStore_ConcurrentIncrements(t *testing.T) {
	store := NewLocalWindowStore()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.Increment(ctx, "shared", time.Minute); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	count, err := store.Increment(ctx, "shared", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != n+1 {
		t.Fatalf("expected %d after %d concurrent increments, got %d", n+1, n, count)
	}
}

func TestLocalWindowStore_SweepEvictsExpired(t *testing.T) {
	store := NewLocalWindowStore()
	ctx := context.Background()

	now := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return now }

	store.Increment(ctx, "short", time.Second)
	store.Increment(ctx, "long", time.Hour)

	if got := store.Len(); got != 2 {
		t.Fatalf("expected 2 tracked windows, got %d", got)
	}

	now = now.Add(5 * time.Second)

	if evicted := store.sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("expected 1 window after sweep, got %d", got)
	}
}

func TestLocalWindowStore_StartStop(t *testing.T) {
	store := NewLocalWindowStore()

	store.Start(10 * time.Millisecond)
	store.Start(10 * time.Millisecond) // second start is a no-op
	store.Stop()
	store.Stop() // second stop must not panic
}
