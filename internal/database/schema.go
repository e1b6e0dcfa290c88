// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// Table names shared with the stores and metric labels.
const (
	TableAuditLog       = "audit_log"
	TableFlaggedContent = "flagged_content"
)

// details and score maps are stored as JSON text in VARCHAR columns so the
// json extension is not required. Timestamps are stored in UTC. Columns that
// are updated in place (moderated, resolved) are left out of indexes.
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS audit_log_seq START 1`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('audit_log_seq'),
			actor_id VARCHAR,
			actor_username VARCHAR,
			action VARCHAR NOT NULL,
			target_type VARCHAR NOT NULL,
			target_id VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			moderated BOOLEAN NOT NULL DEFAULT FALSE,
			details VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_target ON audit_log(target_type, target_id)`,
		`CREATE TABLE IF NOT EXISTS flagged_content (
			id VARCHAR PRIMARY KEY,
			target_type VARCHAR NOT NULL,
			target_id VARCHAR NOT NULL,
			content_name VARCHAR NOT NULL,
			content VARCHAR NOT NULL,
			is_content_image BOOLEAN NOT NULL,
			severity_score DOUBLE NOT NULL,
			dominant_attribute VARCHAR NOT NULL,
			reason VARCHAR NOT NULL,
			details VARCHAR NOT NULL,
			flagged_at TIMESTAMP NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flagged_content_key ON flagged_content(target_type, target_id, content_name)`,
	}
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}
