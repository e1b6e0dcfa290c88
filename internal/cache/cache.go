// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package cache provides a thread-safe in-memory TTL cache. It backs the
// single-process job status store, where the lock and the terminal result
// are short-lived keys that must disappear on their own.
package cache

import (
	"sync"
	"time"
)

// Entry represents a cached item with expiration. A zero ExpiresAt never expires.
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stats tracks cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// Cache is a map guarded by a RWMutex whose entries expire individually.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	stats   Stats
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache with a default TTL and starts a cleanup goroutine
// that runs every cleanupInterval. Call Stop to end it.
func New(ttl, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	c.stats.LastCleanup = c.now()
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.record(func(s *Stats) { s.Misses++ })
		return nil, false
	}
	if entry.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.record(func(s *Stats) { s.Misses++; s.Evictions++ })
		return nil, false
	}

	c.record(func(s *Stats) { s.Hits++ })
	return entry.Data, true
}

// Set stores value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with a custom TTL. ttl <= 0 stores without expiry.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = c.newEntry(value, ttl)
	n := len(c.entries)
	c.mu.Unlock()

	c.record(func(s *Stats) { s.TotalKeys = int64(n) })
}

// SetIfAbsent stores value only when key is missing or expired, atomically.
// It reports whether the value was stored.
func (c *Cache) SetIfAbsent(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && !cur.expired(c.now()) {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = c.newEntry(value, ttl)
	n := len(c.entries)
	c.mu.Unlock()

	c.record(func(s *Stats) { s.TotalKeys = int64(n) })
	return true
}

// CompareAndSwap replaces the value of key with value only when the live
// entry equals old, atomically. old must be comparable.
func (c *Cache) CompareAndSwap(key string, old, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	cur, ok := c.entries[key]
	if !ok || cur.expired(c.now()) || cur.Data != old {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = c.newEntry(value, ttl)
	c.mu.Unlock()
	return true
}

// CompareAndDelete removes key only when the live entry equals old,
// atomically. old must be comparable.
func (c *Cache) CompareAndDelete(key string, old interface{}) bool {
	c.mu.Lock()
	cur, ok := c.entries[key]
	if !ok || cur.expired(c.now()) || cur.Data != old {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()

	c.record(func(s *Stats) { s.Evictions++; s.TotalKeys = int64(n) })
	return true
}

// Delete removes key. Missing keys are a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()

	if existed {
		c.record(func(s *Stats) { s.Evictions++; s.TotalKeys = int64(n) })
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.record(func(s *Stats) { s.Evictions += evicted; s.TotalKeys = 0 })
}

// GetStats returns a copy of the current statistics.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// HitRate returns the hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	s := c.GetStats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) newEntry(value interface{}, ttl time.Duration) Entry {
	e := Entry{Data: value}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}
	return e
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache) cleanup() {
	now := c.now()
	c.mu.Lock()
	var evicted int64
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			evicted++
		}
	}
	c.stats.Evictions += evicted
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.LastCleanup = now
	c.mu.Unlock()
}

// record applies fn to the stats under the write lock.
func (c *Cache) record(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
