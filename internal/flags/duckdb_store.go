// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package flags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/database"
	"github.com/tomtom215/mangaguard/internal/database/query"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// DuckDBStore implements Store on the flagged_content table.
type DuckDBStore struct {
	q database.Querier
}

// NewDuckDBStore creates a store over q, which may be a *sql.DB or a *sql.Tx.
func NewDuckDBStore(q database.Querier) *DuckDBStore {
	return &DuckDBStore{q: q}
}

const selectFlagColumns = `
	SELECT id, target_type, target_id, content_name, content, is_content_image,
		severity_score, dominant_attribute, reason, details, flagged_at,
		resolved, resolved_at
	FROM flagged_content`

// Insert adds a flag. The score map is stored as JSON text.
func (s *DuckDBStore) Insert(ctx context.Context, flag *Flag) error {
	details, err := json.Marshal(flag.Details)
	if err != nil {
		return fmt.Errorf("failed to encode flag details: %w", err)
	}

	start := time.Now()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO flagged_content (
			id, target_type, target_id, content_name, content, is_content_image,
			severity_score, dominant_attribute, reason, details, flagged_at,
			resolved, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID, string(flag.TargetType), flag.TargetID, flag.ContentName, flag.Content, flag.IsContentImage,
		flag.SeverityScore, flag.DominantAttribute, flag.Reason, string(details), flag.FlaggedAt.UTC(),
		flag.Resolved, flag.ResolvedAt,
	)
	metrics.RecordDBQuery("insert", database.TableFlaggedContent, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert flag: %w", err)
	}
	return nil
}

// Get returns a flag by id.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Flag, error) {
	start := time.Now()
	flag, err := scanFlag(s.q.QueryRowContext(ctx, selectFlagColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", database.TableFlaggedContent, time.Since(start), nil)
		return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, id)
	}
	metrics.RecordDBQuery("select", database.TableFlaggedContent, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}
	return flag, nil
}

// ListUnresolved returns unresolved flags for key, oldest first.
func (s *DuckDBStore) ListUnresolved(ctx context.Context, key Key) ([]Flag, error) {
	return s.list(ctx, selectFlagColumns+`
		WHERE target_type = ? AND target_id = ? AND content_name = ? AND resolved = false
		ORDER BY flagged_at ASC, id ASC`,
		string(key.TargetType), key.TargetID, key.ContentName)
}

// MarkResolved resolves an unresolved flag.
func (s *DuckDBStore) MarkResolved(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	result, err := s.q.ExecContext(ctx,
		"UPDATE flagged_content SET resolved = true, resolved_at = ? WHERE id = ? AND resolved = false",
		at.UTC(), id)
	metrics.RecordDBQuery("update", database.TableFlaggedContent, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to resolve flag: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
}

// List returns matching flags, newest first.
func (s *DuckDBStore) List(ctx context.Context, filter Filter) ([]Flag, error) {
	where, args := query.NewWhereBuilder().
		AddBool("resolved", filter.Resolved).
		AddEq("target_type", string(filter.TargetType)).
		AddEq("target_id", filter.TargetID).
		AddEq("content_name", filter.ContentName).
		BuildWithPrefix()
	page, pageArgs := query.LimitOffset(filter.Limit, filter.Offset)

	return s.list(ctx, selectFlagColumns+" "+where+" ORDER BY flagged_at DESC, id DESC"+page, append(args, pageArgs...)...)
}

// CountUnresolved returns the number of open flags.
func (s *DuckDBStore) CountUnresolved(ctx context.Context) (int, error) {
	start := time.Now()
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM flagged_content WHERE resolved = false").Scan(&n)
	metrics.RecordDBQuery("count", database.TableFlaggedContent, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count flags: %w", err)
	}
	return n, nil
}

func (s *DuckDBStore) list(ctx context.Context, sqlQuery string, args ...interface{}) ([]Flag, error) {
	start := time.Now()
	rows, err := s.q.QueryContext(ctx, sqlQuery, args...)
	metrics.RecordDBQuery("select", database.TableFlaggedContent, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query flags: %w", err)
	}
	defer database.CloseWithLog(rows, "flag rows")

	var out []Flag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, *flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flags: %w", err)
	}
	return out, nil
}

func scanFlag(scanner interface {
	Scan(dest ...interface{}) error
}) (*Flag, error) {
	var (
		f          Flag
		targetType string
		details    string
		resolvedAt sql.NullTime
	)
	if err := scanner.Scan(&f.ID, &targetType, &f.TargetID, &f.ContentName, &f.Content, &f.IsContentImage,
		&f.SeverityScore, &f.DominantAttribute, &f.Reason, &details, &f.FlaggedAt,
		&f.Resolved, &resolvedAt); err != nil {
		return nil, err
	}
	f.TargetType = audit.TargetType(targetType)
	f.FlaggedAt = f.FlaggedAt.UTC()
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		f.ResolvedAt = &t
	}
	if err := json.Unmarshal([]byte(details), &f.Details); err != nil {
		return nil, fmt.Errorf("failed to decode flag details: %w", err)
	}
	return &f, nil
}

// DuckDBTransactor runs units of work in a DuckDB transaction.
type DuckDBTransactor struct {
	db *database.DB
}

// NewDuckDBTransactor creates a transactor over db.
func NewDuckDBTransactor(db *database.DB) *DuckDBTransactor {
	return &DuckDBTransactor{db: db}
}

// InTx implements Transactor.
func (t *DuckDBTransactor) InTx(ctx context.Context, fn func(flags Store, entries audit.Store) error) error {
	return t.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(NewDuckDBStore(tx), audit.NewDuckDBStore(tx))
	})
}
