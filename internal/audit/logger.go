// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// Logger writes audit entries synchronously to a Store.
type Logger struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewLogger creates a logger over store.
func NewLogger(store Store) *Logger {
	return &Logger{
		store: store,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: func() string { return uuid.New().String() },
	}
}

// WithStore returns a logger sharing l's clock and id source but writing to
// store. Used to bind audit writes to a transaction.
func (l *Logger) WithStore(store Store) *Logger {
	c := *l
	c.store = store
	return &c
}

// CreateLogEntry records that actor performed action on target. actor is nil
// for system actions.
//
// The entry carries a content snapshot, and starts unmoderated, only when
// action is create, update or resolve_flag and target is a moderatable
// entity value with at least one attribute. Every other entry is written
// already moderated.
func (l *Logger) CreateLogEntry(ctx context.Context, actor *Actor, action Action, target Target) (*Entry, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if target == nil {
		return nil, ErrNilTarget
	}
	if !target.TargetType().Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetType, target.TargetType())
	}
	if target.TargetID() == "" {
		return nil, fmt.Errorf("%w: missing id", ErrNilTarget)
	}

	var raw json.RawMessage
	if action.carriesSnapshot() {
		details, err := snapshot(target)
		if err != nil {
			return nil, err
		}
		if details != nil && len(details.Attributes) > 0 {
			raw, err = json.Marshal(details)
			if err != nil {
				return nil, fmt.Errorf("failed to encode entry details: %w", err)
			}
		}
	} else if _, err := snapshot(target); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:         l.newID(),
		Action:     action,
		TargetType: target.TargetType(),
		TargetID:   target.TargetID(),
		Timestamp:  l.now(),
		Moderated:  len(raw) == 0,
		Details:    raw,
	}
	if actor != nil {
		a := *actor
		entry.Actor = &a
	}

	if err := l.store.Save(ctx, entry); err != nil {
		return nil, err
	}

	metrics.RecordAuditEntry(string(action), entry.Moderated)
	logging.Ctx(ctx).Debug().
		Str("entry_id", entry.ID).
		Str("action", string(action)).
		Str("target_type", string(entry.TargetType)).
		Str("target_id", entry.TargetID).
		Bool("moderated", entry.Moderated).
		Msg("Audit entry created")
	return entry, nil
}
