// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: assigns X-Request-ID and X-Correlation-ID and stores both on
    the request context for logging, events and the audit trail
  - PrometheusMetrics: request counts, latency and in-flight gauge labelled
    by chi route pattern
  - PerformanceMonitor.Middleware: structured request log plus a sliding
    window of latencies served at GET /admin/performance
  - Compression: gzip for clients that accept it

All of them use the func(http.Handler) http.Handler shape expected by chi.
Status-capturing wrappers forward Hijack so the websocket endpoint can sit
behind the same stack.

Order in the router:

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(monitor.Middleware)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Compression)
*/
package middleware
