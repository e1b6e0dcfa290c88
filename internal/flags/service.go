// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package flags

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/logging"
)

// Service is the flag lifecycle: create, resolve and supersede, each with its
// audit trail, each in one transaction.
type Service struct {
	tx     Transactor
	flags  Store
	logger *audit.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a service. flags serves reads outside transactions;
// logger supplies the audit clock and ids and is rebound to the
// transaction's audit store for every write.
func NewService(tx Transactor, flags Store, logger *audit.Logger) *Service {
	return &Service{
		tx:     tx,
		flags:  flags,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateFlag inserts a flag and audits its creation.
func (s *Service) CreateFlag(ctx context.Context, nf NewFlag) (*Flag, error) {
	var created *Flag
	err := s.tx.InTx(ctx, func(flags Store, entries audit.Store) error {
		var err error
		created, err = s.create(ctx, flags, s.logger.WithStore(entries), &nf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Resolve resolves one flag on behalf of actor (nil for the system). action
// must be resolve_flag or auto_resolve_flag. The audit entry targets the
// flagged content, not the flag.
func (s *Service) Resolve(ctx context.Context, actor *audit.Actor, flagID string, action audit.Action) (*Flag, error) {
	if action != audit.ActionResolveFlag && action != audit.ActionAutoResolveFlag {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	var resolved *Flag
	err := s.tx.InTx(ctx, func(flags Store, entries audit.Store) error {
		flag, err := flags.Get(ctx, flagID)
		if err != nil {
			return err
		}
		if flag.Resolved {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, flagID)
		}
		if err := s.resolve(ctx, flags, s.logger.WithStore(entries), actor, flag, action); err != nil {
			return err
		}
		resolved = flag
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ResolveStaleFlags auto-resolves every unresolved flag on key and returns
// how many were resolved.
func (s *Service) ResolveStaleFlags(ctx context.Context, key Key) (int, error) {
	n, _, err := s.Supersede(ctx, key, nil)
	return n, err
}

// Supersede auto-resolves the unresolved flags on key and then, when nf is
// non-nil, creates nf. Both steps commit together or not at all.
func (s *Service) Supersede(ctx context.Context, key Key, nf *NewFlag) (int, *Flag, error) {
	if !key.valid() {
		return 0, nil, fmt.Errorf("%w: incomplete key %+v", ErrInvalidFlag, key)
	}
	if nf != nil && nf.Key != key {
		return 0, nil, fmt.Errorf("%w: flag key %+v does not match %+v", ErrInvalidFlag, nf.Key, key)
	}

	var (
		resolved int
		created  *Flag
	)
	err := s.tx.InTx(ctx, func(flags Store, entries audit.Store) error {
		resolved, created = 0, nil
		logger := s.logger.WithStore(entries)

		stale, err := flags.ListUnresolved(ctx, key)
		if err != nil {
			return err
		}
		for i := range stale {
			if err := s.resolve(ctx, flags, logger, nil, &stale[i], audit.ActionAutoResolveFlag); err != nil {
				return err
			}
			resolved++
		}

		if nf != nil {
			created, err = s.create(ctx, flags, logger, nf)
			return err
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if resolved > 0 {
		logging.Ctx(ctx).Info().
			Str("target_type", string(key.TargetType)).
			Str("target_id", key.TargetID).
			Str("content_name", key.ContentName).
			Int("resolved", resolved).
			Msg("Auto-resolved stale flags")
	}
	return resolved, created, nil
}

// Get returns one flag.
func (s *Service) Get(ctx context.Context, id string) (*Flag, error) {
	return s.flags.Get(ctx, id)
}

// List returns matching flags, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Flag, error) {
	return s.flags.List(ctx, filter)
}

// CountUnresolved returns the number of open flags.
func (s *Service) CountUnresolved(ctx context.Context) (int, error) {
	return s.flags.CountUnresolved(ctx)
}

func (s *Service) create(ctx context.Context, flags Store, logger *audit.Logger, nf *NewFlag) (*Flag, error) {
	if !nf.Key.valid() {
		return nil, fmt.Errorf("%w: incomplete key %+v", ErrInvalidFlag, nf.Key)
	}
	if len(nf.Scores) == 0 {
		return nil, fmt.Errorf("%w: empty score map", ErrInvalidFlag)
	}

	flag := &Flag{
		ID:                s.newID(),
		TargetType:        nf.TargetType,
		TargetID:          nf.TargetID,
		ContentName:       nf.ContentName,
		Content:           nf.Content,
		IsContentImage:    nf.IsImage,
		SeverityScore:     nf.Dominance.Score,
		DominantAttribute: nf.Dominance.Attribute,
		Reason:            nf.Reason,
		Details:           nf.Scores.Clone(),
		FlaggedAt:         s.now(),
	}
	if err := flags.Insert(ctx, flag); err != nil {
		return nil, err
	}
	if _, err := logger.CreateLogEntry(ctx, nil, audit.ActionCreate,
		audit.Ref{Type: audit.TargetFlaggedContent, ID: flag.ID}); err != nil {
		return nil, fmt.Errorf("failed to audit flag creation: %w", err)
	}
	return flag, nil
}

func (s *Service) resolve(ctx context.Context, flags Store, logger *audit.Logger, actor *audit.Actor, flag *Flag, action audit.Action) error {
	at := s.now()
	if err := flags.MarkResolved(ctx, flag.ID, at); err != nil {
		return err
	}
	flag.Resolved = true
	flag.ResolvedAt = &at
	if _, err := logger.CreateLogEntry(ctx, actor, action, flag.ContentRef()); err != nil {
		return fmt.Errorf("failed to audit flag resolution: %w", err)
	}
	return nil
}
