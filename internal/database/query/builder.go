// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package query builds parameterized WHERE clauses for the list endpoints
// of the audit and flag stores.
package query

import (
	"fmt"
	"strings"
)

// WhereBuilder accumulates AND-joined conditions with positional arguments.
//
//	wb := query.NewWhereBuilder()
//	wb.AddEq("target_type", "comment").AddBool("resolved", &resolved)
//	where, args := wb.BuildWithPrefix()
//	// WHERE target_type = ? AND resolved = ?
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause adds a raw condition. The caller owns the SQL fragment; only
// values go through args.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEq adds "column = ?" when value is non-empty.
func (wb *WhereBuilder) AddEq(column, value string) *WhereBuilder {
	if value == "" {
		return wb
	}
	return wb.AddClause(column+" = ?", value)
}

// AddBool adds "column = ?" when value is non-nil.
func (wb *WhereBuilder) AddBool(column string, value *bool) *WhereBuilder {
	if value == nil {
		return wb
	}
	return wb.AddClause(column+" = ?", *value)
}

// AddIn adds "column IN (?, ...)" when values is non-empty.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return wb
}

// Build returns the joined conditions without the WHERE keyword, or "1=1".
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix is Build with a leading "WHERE ".
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	where, args := wb.Build()
	return "WHERE " + where, args
}

// IsEmpty reports whether no conditions were added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}

// LimitOffset returns a LIMIT/OFFSET suffix and its arguments. limit <= 0
// means no limit.
func LimitOffset(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		if offset > 0 {
			return " OFFSET ?", []interface{}{offset}
		}
		return "", nil
	}
	if offset < 0 {
		offset = 0
	}
	return " LIMIT ? OFFSET ?", []interface{}{limit, offset}
}
