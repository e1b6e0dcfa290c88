// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
)

// testDBSemaphore serializes DuckDB creation; concurrent CGO opens are slow in CI.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 1})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countAudit(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func insertAudit(ctx context.Context, q Querier, id string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, target_type, target_id, created_at, moderated) VALUES (?, 'create', 'comment', '1', ?, false)`,
		id, time.Now().UTC())
	return err
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, table := range []string{TableAuditLog, TableFlaggedContent} {
		var n int
		err := db.Conn().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&n)
		if err != nil {
			t.Fatalf("query information_schema: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s not created", table)
		}
	}
}

func TestAuditSequenceOrdersInserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := insertAudit(ctx, db.Conn(), id); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := db.Conn().QueryContext(ctx, "SELECT id FROM audit_log ORDER BY seq")
	if err != nil {
		t.Fatal(err)
	}
	defer CloseWithLog(rows, "rows")

	var got []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatal(err)
		}
		got = append(got, id)
	}
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Errorf("order = %v, want [b a c]", got)
	}
}

func TestWithTxCommit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertAudit(ctx, tx, "one")
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if n := countAudit(t, db); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestWithTxRollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertAudit(ctx, tx, "one"); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n := countAudit(t, db); n != 0 {
		t.Errorf("rows = %d, want 0 after rollback", n)
	}
}

func TestWithTxRollbackOnPanic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate")
			}
		}()
		_ = db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := insertAudit(ctx, tx, "one"); err != nil {
				return err
			}
			panic("unexpected")
		})
	}()

	if n := countAudit(t, db); n != 0 {
		t.Errorf("rows = %d, want 0 after panic", n)
	}
}
