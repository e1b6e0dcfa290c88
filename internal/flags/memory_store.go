// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package flags

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/mangaguard/internal/audit"
)

// MemoryStore implements Store in memory, in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	flags []Flag
	index map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Insert adds a flag.
func (s *MemoryStore) Insert(ctx context.Context, flag *Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[flag.ID]; exists {
		return fmt.Errorf("duplicate flag id: %s", flag.ID)
	}
	s.index[flag.ID] = len(s.flags)
	s.flags = append(s.flags, cloneFlag(flag))
	return nil
}

// Get returns a flag by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, id)
	}
	f := cloneFlag(&s.flags[i])
	return &f, nil
}

// ListUnresolved returns unresolved flags for key, oldest first.
func (s *MemoryStore) ListUnresolved(ctx context.Context, key Key) ([]Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Flag
	for i := range s.flags {
		f := &s.flags[i]
		if !f.Resolved && f.Key() == key {
			out = append(out, cloneFlag(f))
		}
	}
	return out, nil
}

// MarkResolved resolves an unresolved flag.
func (s *MemoryStore) MarkResolved(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlagNotFound, id)
	}
	if s.flags[i].Resolved {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}
	s.flags[i].Resolved = true
	s.flags[i].ResolvedAt = &at
	return nil
}

// List returns matching flags, newest first.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Flag
	skipped := 0
	for i := len(s.flags) - 1; i >= 0; i-- {
		f := &s.flags[i]
		if !matches(f, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, cloneFlag(f))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// CountUnresolved returns the number of open flags.
func (s *MemoryStore) CountUnresolved(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for i := range s.flags {
		if !s.flags[i].Resolved {
			n++
		}
	}
	return n, nil
}

// Checkpoint captures the current contents; the returned function restores them.
func (s *MemoryStore) Checkpoint() (restore func()) {
	s.mu.RLock()
	saved := make([]Flag, len(s.flags))
	for i := range s.flags {
		saved[i] = cloneFlag(&s.flags[i])
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.flags = saved
		s.index = make(map[string]int, len(saved))
		for i := range saved {
			s.index[saved[i].ID] = i
		}
	}
}

func matches(f *Flag, filter *Filter) bool {
	if filter.Resolved != nil && f.Resolved != *filter.Resolved {
		return false
	}
	if filter.TargetType != "" && f.TargetType != filter.TargetType {
		return false
	}
	if filter.TargetID != "" && f.TargetID != filter.TargetID {
		return false
	}
	if filter.ContentName != "" && f.ContentName != filter.ContentName {
		return false
	}
	return true
}

func cloneFlag(f *Flag) Flag {
	c := *f
	c.Details = f.Details.Clone()
	if f.ResolvedAt != nil {
		t := *f.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// MemoryTransactor serializes units of work over memory stores and rolls
// both back when one fails.
type MemoryTransactor struct {
	mu      sync.Mutex
	flags   *MemoryStore
	entries *audit.MemoryStore
}

// NewMemoryTransactor binds the two stores.
func NewMemoryTransactor(flags *MemoryStore, entries *audit.MemoryStore) *MemoryTransactor {
	return &MemoryTransactor{flags: flags, entries: entries}
}

// InTx implements Transactor.
func (t *MemoryTransactor) InTx(ctx context.Context, fn func(flags Store, entries audit.Store) error) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	restoreFlags := t.flags.Checkpoint()
	restoreEntries := t.entries.Checkpoint()
	defer func() {
		if p := recover(); p != nil {
			restoreFlags()
			restoreEntries()
			panic(p)
		}
		if err != nil {
			restoreFlags()
			restoreEntries()
		}
	}()

	return fn(t.flags, t.entries)
}
