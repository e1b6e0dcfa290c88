// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"context"
	"time"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/flags"
	"github.com/tomtom215/mangaguard/internal/jobs"
)

// AuditWriter is satisfied by *audit.Logger.
type AuditWriter interface {
	CreateLogEntry(ctx context.Context, actor *audit.Actor, action audit.Action, target audit.Target) (*audit.Entry, error)
}

// AuditReader is satisfied by every audit.Store.
type AuditReader interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// FlagService is satisfied by *flags.Service.
type FlagService interface {
	List(ctx context.Context, filter flags.Filter) ([]flags.Flag, error)
	Get(ctx context.Context, id string) (*flags.Flag, error)
	Resolve(ctx context.Context, actor *audit.Actor, flagID string, action audit.Action) (*flags.Flag, error)
}

// JobService is satisfied by *jobs.Orchestrator.
type JobService interface {
	RequestRun(ctx context.Context) (*jobs.RequestResult, error)
	ReadStatus(ctx context.Context) (*jobs.StatusView, error)
}

// ReadinessCheck is one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators of Handler. Readiness may be empty.
type Deps struct {
	AuditLog  AuditWriter
	Entries   AuditReader
	Flags     FlagService
	Jobs      JobService
	Readiness []ReadinessCheck
}

// Handler serves the API routes.
//
// Methods are split across files by resource:
//   - handlers_audit.go: audit entries
//   - handlers_flags.go: flagged content
//   - handlers_moderation.go: run requests and status
//   - handlers_health.go: liveness and readiness
type Handler struct {
	auditLog  AuditWriter
	entries   AuditReader
	flags     FlagService
	jobs      JobService
	readiness []ReadinessCheck
	startTime time.Time
}

// NewHandler creates a handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		auditLog:  deps.AuditLog,
		entries:   deps.Entries,
		flags:     deps.Flags,
		jobs:      deps.Jobs,
		readiness: deps.Readiness,
		startTime: time.Now(),
	}
}
