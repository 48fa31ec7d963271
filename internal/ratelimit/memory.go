// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	hits   []time.Time
	window time.Duration
}

// MemoryStore keeps a sliding log of hits per key in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration, limit int, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{window: window}
		s.entries[key] = e
	}
	e.window = window
	e.prune(now)

	if len(e.hits) >= limit {
		retry := e.hits[0].Add(window).Sub(now)
		return Result{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	e.hits = append(e.hits, now)
	return Result{Allowed: true, Remaining: limit - len(e.hits)}, nil
}

// Prune drops keys without hits inside their window and returns how many
// were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		e.prune(now)
		if len(e.hits) == 0 {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// prune drops hits that left the window ending at now. Hits are kept in
// ascending order.
func (e *memoryEntry) prune(now time.Time) {
	cutoff := now.Add(-e.window)
	i := 0
	for i < len(e.hits) && !e.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.hits = append(e.hits[:0], e.hits[i:]...)
	}
}
