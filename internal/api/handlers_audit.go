// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/mangaguard/internal/audit"
)

// CreateEntry records an audit entry posted by the CRUD layer.
//
// Entries for create, update and resolve_flag on content with a snapshot
// are written unmoderated and picked up by the next moderation run.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	target, err := audit.DecodeTarget(req.TargetType, req.TargetID, req.Snapshot)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return
	}

	entry, err := h.auditLog.CreateLogEntry(r.Context(), req.Actor.toActor(), audit.Action(req.Action), target)
	if err != nil {
		if isAuditInputError(err) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to record audit entry", err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, entry)
}

// ListEntries lists audit entries, newest first.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	page, apiErr := parsePage(r)
	if apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	moderated, apiErr := parseOptionalBool(r, "moderated", nil)
	if apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Moderated:  moderated,
		Action:     audit.Action(q.Get("action")),
		TargetType: audit.TargetType(q.Get("target_type")),
		TargetID:   q.Get("target_id"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if filter.Action != "" && !filter.Action.Valid() {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "unknown action: "+sanitizeLogValue(string(filter.Action)), nil)
		return
	}
	if filter.TargetType != "" && !filter.TargetType.Valid() {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "unknown target_type: "+sanitizeLogValue(string(filter.TargetType)), nil)
		return
	}

	entries, err := h.entries.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to list audit entries", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	respondList(w, r, entries, len(entries), page.Limit, page.Offset)
}

func isAuditInputError(err error) bool {
	return errors.Is(err, audit.ErrInvalidAction) ||
		errors.Is(err, audit.ErrInvalidTargetType) ||
		errors.Is(err, audit.ErrNilTarget) ||
		errors.Is(err, audit.ErrMalformedDetails) ||
		errors.Is(err, audit.ErrUnhandledTarget)
}
