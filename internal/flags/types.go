// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package flags stores unsafe findings produced by moderation and manages
// their lifecycle. A flag is created unresolved and becomes resolved either
// automatically, when fresher content supersedes it, or by an operator.
// Flags are never deleted.
//
// At most one unresolved flag exists per Key. The Service keeps that true by
// resolving stale flags and inserting the new one inside a single
// transaction, with the audit entries for both steps written to the same
// unit of work.
package flags

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/scoring"
)

// Errors returned by the flags package.
var (
	ErrFlagNotFound    = errors.New("flag not found")
	ErrAlreadyResolved = errors.New("flag already resolved")
	ErrInvalidAction   = errors.New("invalid resolve action")
	ErrInvalidFlag     = errors.New("invalid flag")
)

// Key identifies one moderatable attribute of one entity.
type Key struct {
	TargetType  audit.TargetType `json:"target_type"`
	TargetID    string           `json:"target_id"`
	ContentName string           `json:"content_name"`
}

func (k Key) valid() bool {
	return k.TargetType != "" && k.TargetID != "" && k.ContentName != ""
}

// Flag is one unsafe finding.
type Flag struct {
	ID                string           `json:"id"`
	TargetType        audit.TargetType `json:"target_type"`
	TargetID          string           `json:"target_id"`
	ContentName       string           `json:"content_name"`
	Content           string           `json:"content"`
	IsContentImage    bool             `json:"is_content_image"`
	SeverityScore     float64          `json:"severity_score"`
	DominantAttribute string           `json:"dominant_attribute"`
	Reason            string           `json:"reason"`
	Details           scoring.ScoreMap `json:"details"`
	FlaggedAt         time.Time        `json:"flagged_at"`
	Resolved          bool             `json:"resolved"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty"`
}

// Key returns the attribute the flag is about.
func (f *Flag) Key() Key {
	return Key{TargetType: f.TargetType, TargetID: f.TargetID, ContentName: f.ContentName}
}

// ContentRef points at the flagged entity, for audit entries that should
// read as being about the content rather than the flag.
func (f *Flag) ContentRef() audit.Ref {
	return audit.Ref{Type: f.TargetType, ID: f.TargetID}
}

// NewFlag describes a flag to create.
type NewFlag struct {
	Key
	Content   string
	IsImage   bool
	Scores    scoring.ScoreMap
	Reason    string
	Dominance scoring.Dominance
}

// Filter selects flags for listing. Zero values match everything.
type Filter struct {
	Resolved    *bool
	TargetType  audit.TargetType
	TargetID    string
	ContentName string
	Limit       int
	Offset      int
}

// Store persists flags.
type Store interface {
	Insert(ctx context.Context, flag *Flag) error
	Get(ctx context.Context, id string) (*Flag, error)
	// ListUnresolved returns unresolved flags for key, oldest first.
	ListUnresolved(ctx context.Context, key Key) ([]Flag, error)
	// MarkResolved resolves an unresolved flag. It returns ErrFlagNotFound
	// or ErrAlreadyResolved when nothing changed.
	MarkResolved(ctx context.Context, id string, at time.Time) error
	// List returns matching flags, newest first.
	List(ctx context.Context, filter Filter) ([]Flag, error)
	CountUnresolved(ctx context.Context) (int, error)
}

// Transactor runs fn with a flag store and an audit store bound to one unit
// of work. A non-nil error or a panic from fn discards every write.
type Transactor interface {
	InTx(ctx context.Context, fn func(flags Store, entries audit.Store) error) error
}
