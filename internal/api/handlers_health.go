// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/mangaguard/internal/logging"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// HealthLive reports that the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady runs every readiness check and returns 503 if any fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.readiness))
	ready := true
	for _, rc := range h.readiness {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := rc.Check(ctx)
		cancel()
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("check", rc.Name).Msg("Readiness check failed")
			ready = false
			checks[rc.Name] = "error"
			continue
		}
		checks[rc.Name] = "ok"
	}

	data := map[string]interface{}{"ready": ready, "checks": checks}
	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, &APIResponse{
			Status:   "error",
			Data:     data,
			Metadata: newMetadata(r),
			Error:    &APIError{Code: ErrCodeServiceUnavailable, Message: "Service is not ready"},
		})
		return
	}
	respondSuccess(w, r, http.StatusOK, data)
}
