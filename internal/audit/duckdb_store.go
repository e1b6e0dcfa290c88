// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mangaguard/internal/database"
	"github.com/tomtom215/mangaguard/internal/database/query"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// DuckDBStore implements Store on the audit_log table.
type DuckDBStore struct {
	q database.Querier
}

// NewDuckDBStore creates a store over q, which may be a *sql.DB or a *sql.Tx.
// The schema is created by database.New.
func NewDuckDBStore(q database.Querier) *DuckDBStore {
	return &DuckDBStore{q: q}
}

const selectEntryColumns = `
	SELECT id, actor_id, actor_username, action, target_type, target_id,
		created_at, moderated, details
	FROM audit_log`

// Save inserts an entry.
func (s *DuckDBStore) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	start := time.Now()

	var actorID, actorName *string
	if entry.Actor != nil {
		actorID, actorName = &entry.Actor.ID, &entry.Actor.Username
	}
	var details *string
	if entry.HasDetails() {
		d := string(entry.Details)
		details = &d
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, actor_id, actor_username, action, target_type, target_id,
			created_at, moderated, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, actorID, actorName, string(entry.Action), string(entry.TargetType), entry.TargetID,
		entry.Timestamp.UTC(), entry.Moderated, details,
	)
	metrics.RecordDBQuery("insert", database.TableAuditLog, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Entry, error) {
	start := time.Now()
	row := s.q.QueryRowContext(ctx, selectEntryColumns+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	metrics.RecordDBQuery("select", database.TableAuditLog, time.Since(start), ignoreNoRows(err))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// ListUnmoderated returns unmoderated entries in insertion order.
func (s *DuckDBStore) ListUnmoderated(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, selectEntryColumns+" WHERE moderated = false ORDER BY seq ASC")
}

// MarkModerated flips the moderated flag.
func (s *DuckDBStore) MarkModerated(ctx context.Context, id string) error {
	start := time.Now()
	result, err := s.q.ExecContext(ctx, "UPDATE audit_log SET moderated = true WHERE id = ?", id)
	metrics.RecordDBQuery("update", database.TableAuditLog, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark audit entry moderated: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

// Query returns matching entries, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	wb := query.NewWhereBuilder().
		AddBool("moderated", filter.Moderated).
		AddEq("action", string(filter.Action)).
		AddEq("target_type", string(filter.TargetType)).
		AddEq("target_id", filter.TargetID)
	where, args := wb.BuildWithPrefix()
	page, pageArgs := query.LimitOffset(filter.Limit, filter.Offset)

	return s.list(ctx, selectEntryColumns+" "+where+" ORDER BY seq DESC"+page, append(args, pageArgs...)...)
}

func (s *DuckDBStore) list(ctx context.Context, sqlQuery string, args ...interface{}) ([]Entry, error) {
	start := time.Now()
	rows, err := s.q.QueryContext(ctx, sqlQuery, args...)
	metrics.RecordDBQuery("select", database.TableAuditLog, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer database.CloseWithLog(rows, "audit rows")

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                  Entry
		action, targetType string
		actorID, actorName sql.NullString
		details            sql.NullString
	)
	if err := row.Scan(&e.ID, &actorID, &actorName, &action, &targetType, &e.TargetID,
		&e.Timestamp, &e.Moderated, &details); err != nil {
		return nil, err
	}
	e.Action = Action(action)
	e.TargetType = TargetType(targetType)
	e.Timestamp = e.Timestamp.UTC()
	if actorID.Valid {
		e.Actor = &Actor{ID: actorID.String, Username: actorName.String}
	}
	if details.Valid && details.String != "" {
		e.Details = []byte(details.String)
	}
	return &e, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
