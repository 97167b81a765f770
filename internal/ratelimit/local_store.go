package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// LocalWindowStore is an in-process fixed-window counter. It is not
// shared across instances, so it serves single-process throttles and
// degraded fallback only. Windows are epoch-aligned like the shared
// store's, so reset timestamps from either store agree.
type LocalWindowStore struct {
	mu      sync.Mutex
	windows map[string]*localWindow
	now     func() time.Time

	stopChan chan struct{}
	running  bool
}

type localWindow struct {
	count   int64
	resetAt time.Time
}

func NewLocalWindowStore() *LocalWindowStore {
	return &LocalWindowStore{
		windows:  make(map[string]*localWindow),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Increment counts one request against key. The ttl is the policy's
// window length; a new window starts the first increment after the
// previous one's reset. Never fails.
func (s *LocalWindowStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		windowMs := ttl.Milliseconds()
		startMs := now.UnixMilli() - now.UnixMilli()%windowMs

		w = &localWindow{
			count:   1,
			resetAt: time.UnixMilli(startMs + windowMs),
		}
		s.windows[key] = w
		return 1, nil
	}

	w.count++
	return w.count, nil
}

// Len returns the number of tracked windows, expired ones included
// until the next sweep.
func (s *LocalWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Start begins the periodic eviction sweep that bounds memory.
func (s *LocalWindowStore) Start(interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if evicted := s.sweep(); evicted > 0 {
					log.Printf("Local window store evicted %d expired windows", evicted)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the eviction sweep.
func (s *LocalWindowStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

func (s *LocalWindowStore) sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			evicted++
		}
	}

	return evicted
}
