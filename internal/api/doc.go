// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

/*
Package api provides the chi HTTP surface of Mangaguard.

Two callers use it. The CRUD layer posts audit entries whenever content is
created, updated or deleted. The operator surface lists and resolves flags,
requests moderation runs and polls their status.

# Routes

	POST /api/v1/audit/entries          record an audit entry
	GET  /api/v1/audit/entries          list entries (moderated, action, target_type, target_id, limit, offset)
	GET  /api/v1/flags                  list flags (resolved=false by default; true, false or all)
	GET  /api/v1/flags/{id}             get one flag
	POST /api/v1/flags/{id}/resolve     resolve a flag on behalf of an operator
	POST /api/v1/moderation/run         request a run: 202 queued, 409 in flight, 503 worker unreachable
	GET  /api/v1/moderation/status      current run status; completed and failed are returned once
	GET  /api/v1/health/live            liveness
	GET  /api/v1/health/ready           readiness (database, status store, queue)
	GET  /metrics                       Prometheus

The worker binary serves WakeRouter instead: GET /wake plus /metrics.

# Response Format

Every JSON response uses one envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "NOT_FOUND", "message": "..."}}

Request bodies are validated with go-playground/validator through the
validation package; failures return 400 with code VALIDATION_ERROR.

# Middleware

Global: request and correlation ids, real IP, panic recovery, CORS.
Per group: httprate limits, security headers, Prometheus metrics.
*/
package api
