// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package audit records every create, update, delete, login and logout on
// platform entities, plus the flag lifecycle events written by moderation.
//
// # Entries
//
// An Entry names an actor (nil for system actions), an Action, and a target
// (type and id). When the action is create, update or resolve_flag and the
// target is a moderatable entity value, the entry also carries a content
// snapshot in Details:
//
//	{"targetType": "comment", "attributes": [
//	    {"attributeName": "text", "isImage": false, "content": "..."}
//	]}
//
// Entries with a snapshot start with Moderated=false and are consumed by the
// moderation pipeline, which flips the flag exactly once. Every other entry is
// written with Moderated=true.
//
// # Targets
//
// Targets form a closed set: User, ReaderProfile, MangaTitle, Chapter, Page,
// Comment and Ref. Ref is a bare (type, id) reference without content and
// never yields a snapshot; it is how flag lifecycle entries point back at the
// content they concern. Any other Target implementation is rejected with
// ErrUnhandledTarget.
//
// # Storage
//
// MemoryStore serves tests and single-process development. DuckDBStore
// writes to the audit_log table through a database.Querier, so the flags
// package can bind it to the same transaction as its own writes.
//
// # Usage
//
//	logger := audit.NewLogger(store)
//	entry, err := logger.CreateLogEntry(ctx, &audit.Actor{ID: "7", Username: "ren"},
//	    audit.ActionUpdate, audit.Comment{ID: "42", Text: body})
package audit
