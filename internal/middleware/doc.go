// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

/*
Package middleware provides HTTP middleware shared by the API server and the
worker wake endpoint.

  - RequestID: X-Request-ID and X-Correlation-ID propagation into the
    logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labeled by
    chi route pattern

Both use the http.HandlerFunc form. The api package adapts them to chi's
func(http.Handler) http.Handler:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

A correlation id sent by the caller is kept, so a run request can be traced
from the operator surface through the queue into the worker.
*/
package middleware
