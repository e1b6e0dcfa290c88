// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mangaguard/internal/middleware"
)

// WakeRouter is the worker's HTTP surface. GET /wake answers 200 while the
// process serves; hosts that scale idle workers to zero start the process
// on the first probe.
func WakeRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Get("/wake", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, r, http.StatusOK, map[string]interface{}{"awake": true})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
