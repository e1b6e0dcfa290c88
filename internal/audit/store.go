// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package audit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements Store in memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Save appends an entry.
func (s *MemoryStore) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[entry.ID]; exists {
		return fmt.Errorf("duplicate audit entry id: %s", entry.ID)
	}
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	e := cloneEntry(&s.entries[i])
	return &e, nil
}

// ListUnmoderated returns unmoderated entries in insertion order.
func (s *MemoryStore) ListUnmoderated(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := range s.entries {
		if !s.entries[i].Moderated {
			out = append(out, cloneEntry(&s.entries[i]))
		}
	}
	return out, nil
}

// MarkModerated flips the moderated flag.
func (s *MemoryStore) MarkModerated(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	s.entries[i].Moderated = true
	return nil
}

// Query returns matching entries, newest first.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := &s.entries[i]
		if !matchesFilter(e, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, cloneEntry(e))
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func matchesFilter(e *Entry, f *Filter) bool {
	if f.Moderated != nil && e.Moderated != *f.Moderated {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	return true
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Checkpoint captures the current contents. Calling the returned function
// restores them, discarding everything written since.
func (s *MemoryStore) Checkpoint() (restore func()) {
	s.mu.RLock()
	saved := make([]Entry, len(s.entries))
	for i := range s.entries {
		saved[i] = cloneEntry(&s.entries[i])
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = saved
		s.index = make(map[string]int, len(saved))
		for i := range saved {
			s.index[saved[i].ID] = i
		}
	}
}

func cloneEntry(e *Entry) Entry {
	c := *e
	if e.Actor != nil {
		a := *e.Actor
		c.Actor = &a
	}
	if e.Details != nil {
		c.Details = append([]byte(nil), e.Details...)
	}
	return c
}
