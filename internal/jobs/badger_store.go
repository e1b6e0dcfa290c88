// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/mangaguard/internal/config"
)

const badgerKeyPrefix = "jobs:"

// badgerConflictRetries bounds how often a compare-and-write is retried
// after losing an optimistic transaction to a concurrent writer.
const badgerConflictRetries = 3

// BadgerStore keeps the status in BadgerDB so it survives restarts of a
// single-node deployment. Expiry uses badger's native entry TTL.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadger opens the database described by cfg.
func OpenBadger(cfg *config.BadgerConfig) (*badger.DB, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	opts := badger.DefaultOptions(path)
	opts.InMemory = cfg.InMemory
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return db, nil
}

// Get implements StatusStore.
func (s *BadgerStore) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get status: %w", err)
	}
	return value, true, nil
}

// Set implements StatusStore.
func (s *BadgerStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newBadgerEntry(key, value, ttl))
	})
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// SetNX implements StatusStore. A transaction conflict means another writer
// claimed the key first.
func (s *BadgerStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.SetEntry(newBadgerEntry(key, value, ttl)); err != nil {
			return err
		}
		stored = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set status if absent: %w", err)
	}
	return stored, nil
}

// CompareAndSwap implements StatusStore.
func (s *BadgerStore) CompareAndSwap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	swapped, err := s.compareAndWrite(key, old, func(txn *badger.Txn) error {
		return txn.SetEntry(newBadgerEntry(key, value, ttl))
	})
	if err != nil {
		return false, fmt.Errorf("compare and swap status: %w", err)
	}
	return swapped, nil
}

// CompareAndDelete implements StatusStore.
func (s *BadgerStore) CompareAndDelete(_ context.Context, key, old string) (bool, error) {
	deleted, err := s.compareAndWrite(key, old, func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + key))
	})
	if err != nil {
		return false, fmt.Errorf("compare and delete status: %w", err)
	}
	return deleted, nil
}

// compareAndWrite applies write in the same transaction that reads key, only
// when the stored value equals old. A conflict means the key changed after
// the read, so the comparison is redone against the new value.
func (s *BadgerStore) compareAndWrite(key, old string, write func(txn *badger.Txn) error) (bool, error) {
	var err error
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		matched := false
		err = s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(badgerKeyPrefix + key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			current, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(current) != old {
				return nil
			}
			if err := write(txn); err != nil {
				return err
			}
			matched = true
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			if err != nil {
				return false, err
			}
			return matched, nil
		}
	}
	return false, err
}

// Delete implements StatusStore.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete status: %w", err)
	}
	return nil
}

func newBadgerEntry(key, value string, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(badgerKeyPrefix+key), []byte(value))
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}
