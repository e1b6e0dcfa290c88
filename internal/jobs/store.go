// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/mangaguard/internal/cache"
)

// StatusStore is the key-value store holding the job status. Every method is
// atomic on its own. Transitions that depend on the current value go through
// CompareAndSwap or CompareAndDelete, never a Get followed by a write.
type StatusStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value with ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareAndSwap stores value only if key currently holds old and
	// reports whether it did.
	CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only if it currently holds old and
	// reports whether it did.
	CompareAndDelete(ctx context.Context, key, old string) (bool, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps the status in a process-local TTL cache. It is only
// correct when the API and the worker share a process.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore wraps c.
func NewMemoryStore(c *cache.Cache) *MemoryStore {
	return &MemoryStore{cache: c}
}

// Get implements StatusStore.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("status key %s holds %T", key, v)
	}
	return str, true, nil
}

// Set implements StatusStore.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.SetWithTTL(key, value, ttl)
	return nil
}

// SetNX implements StatusStore.
func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.cache.SetIfAbsent(key, value, ttl), nil
}

// CompareAndSwap implements StatusStore.
func (s *MemoryStore) CompareAndSwap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	return s.cache.CompareAndSwap(key, old, value, ttl), nil
}

// CompareAndDelete implements StatusStore.
func (s *MemoryStore) CompareAndDelete(_ context.Context, key, old string) (bool, error) {
	return s.cache.CompareAndDelete(key, old), nil
}

// Delete implements StatusStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
