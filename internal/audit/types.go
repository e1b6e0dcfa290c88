// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Action is the kind of operation an entry records.
type Action string

const (
	ActionLogin           Action = "login"
	ActionLogout          Action = "logout"
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionAutoResolveFlag Action = "auto_resolve_flag"
	ActionResolveFlag     Action = "resolve_flag"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionCreate, ActionUpdate, ActionDelete,
		ActionAutoResolveFlag, ActionResolveFlag:
		return true
	}
	return false
}

// carriesSnapshot reports whether entries of this action record content.
func (a Action) carriesSnapshot() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionResolveFlag
}

// TargetType names the kind of entity an entry is about.
type TargetType string

const (
	TargetUser       TargetType = "user"
	TargetMangaTitle TargetType = "manga_title"
	TargetChapter    TargetType = "chapter"
	TargetPage       TargetType = "page"
	TargetComment    TargetType = "comment"

	TargetGenre          TargetType = "genre"
	TargetAuthor         TargetType = "author"
	TargetReport         TargetType = "report"
	TargetFlaggedContent TargetType = "flagged_content"
	TargetAnnouncement   TargetType = "announcement"
	TargetPenalty        TargetType = "penalty"
)

// Moderatable reports whether content of this type is scored.
func (t TargetType) Moderatable() bool {
	switch t {
	case TargetUser, TargetMangaTitle, TargetChapter, TargetPage, TargetComment:
		return true
	}
	return false
}

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	if t.Moderatable() {
		return true
	}
	switch t {
	case TargetGenre, TargetAuthor, TargetReport, TargetFlaggedContent, TargetAnnouncement, TargetPenalty:
		return true
	}
	return false
}

// Errors returned by the audit package.
var (
	ErrEntryNotFound     = errors.New("audit entry not found")
	ErrInvalidAction     = errors.New("invalid audit action")
	ErrInvalidTargetType = errors.New("invalid target type")
	ErrNilTarget         = errors.New("audit target is required")
	ErrUnhandledTarget   = errors.New("unhandled audit target")
	ErrMalformedDetails  = errors.New("malformed entry details")
)

// Actor identifies who performed an action.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Attribute is one moderatable field of a content snapshot.
type Attribute struct {
	AttributeName string `json:"attributeName"`
	IsImage       bool   `json:"isImage"`
	Content       string `json:"content"`
}

// Details is the content snapshot carried by moderatable entries.
type Details struct {
	TargetType TargetType  `json:"targetType"`
	Attributes []Attribute `json:"attributes"`
}

// Entry is one audit log row. Details holds the snapshot as written; use
// Snapshot to decode it.
type Entry struct {
	ID         string          `json:"id"`
	Actor      *Actor          `json:"actor,omitempty"`
	Action     Action          `json:"action"`
	TargetType TargetType      `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Moderated  bool            `json:"moderated"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// HasDetails reports whether the entry carries a snapshot.
func (e *Entry) HasDetails() bool {
	return len(e.Details) > 0 && string(e.Details) != "null" && string(e.Details) != "{}"
}

// Snapshot decodes Details. It returns nil, nil for entries without one.
func (e *Entry) Snapshot() (*Details, error) {
	if !e.HasDetails() {
		return nil, nil
	}
	var d Details
	if err := json.Unmarshal(e.Details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDetails, err)
	}
	return &d, nil
}

// Filter selects entries for listing. Zero values match everything.
type Filter struct {
	Moderated  *bool
	Action     Action
	TargetType TargetType
	TargetID   string
	Limit      int
	Offset     int
}

// Store persists audit entries. Entries are append-only; the only mutation
// is MarkModerated.
type Store interface {
	Save(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	// ListUnmoderated returns every entry with Moderated=false, oldest first.
	ListUnmoderated(ctx context.Context) ([]Entry, error)
	// MarkModerated flips Moderated to true. Missing ids return ErrEntryNotFound.
	MarkModerated(ctx context.Context, id string) error
	// Query returns matching entries, newest first.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}
