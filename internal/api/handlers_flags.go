// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/flags"
)

// ListFlags lists flags, newest first. Only unresolved flags are returned
// unless resolved=true or resolved=all.
func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	page, apiErr := parsePage(r)
	if apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	unresolved := false
	resolved, apiErr := parseOptionalBool(r, "resolved", &unresolved)
	if apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	q := r.URL.Query()
	filter := flags.Filter{
		Resolved:    resolved,
		TargetType:  audit.TargetType(q.Get("target_type")),
		TargetID:    q.Get("target_id"),
		ContentName: q.Get("content_name"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}

	list, err := h.flags.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to list flags", err)
		return
	}
	if list == nil {
		list = []flags.Flag{}
	}
	respondList(w, r, list, len(list), page.Limit, page.Offset)
}

// GetFlag returns one flag.
func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := h.flags.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFlagError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, flag)
}

// ResolveFlag resolves a flag on behalf of the operator in the body. The
// audit entry it writes targets the flagged content.
func (h *Handler) ResolveFlag(w http.ResponseWriter, r *http.Request) {
	var req ResolveFlagRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	flag, err := h.flags.Resolve(r.Context(), req.Actor.toActor(), chi.URLParam(r, "id"), audit.ActionResolveFlag)
	if err != nil {
		h.respondFlagError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, flag)
}

func (h *Handler) respondFlagError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, flags.ErrFlagNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Flag not found", nil)
	case errors.Is(err, flags.ErrAlreadyResolved):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Flag is already resolved", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Flag operation failed", err)
	}
}
