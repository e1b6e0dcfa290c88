// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/mangaguard/internal/jobs"
)

// RequestRun asks for a moderation run.
//
//	202 the run is queued
//	409 a run is already starting, queued or running
//	503 the worker did not answer the wake probe
func (h *Handler) RequestRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.jobs.RequestRun(r.Context())
	switch {
	case err == nil:
		respondSuccess(w, r, http.StatusAccepted, result)
	case errors.Is(err, jobs.ErrAlreadyRunning):
		respondError(w, r, http.StatusConflict, ErrCodeRunInProgress, jobs.MessageAlreadyRunning, nil)
	case errors.Is(err, jobs.ErrWorkerUnreachable):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeWorkerUnreachable, jobs.MessageWorkerUnreachable, nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to request moderation run", err)
	}
}

// ModerationStatus returns the run status. Reading a completed or failed
// status resets it to idle.
func (h *Handler) ModerationStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.jobs.ReadStatus(r.Context())
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Job status is unavailable", err)
		return
	}
	respondSuccess(w, r, http.StatusOK, view)
}
